//go:build linux

package rapidrpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (addr NetAddr, mainLoop *EventLoop, workers []*EventLoop) {
	t.Helper()

	mainLoop, err := NewEventLoop()
	require.NoError(t, err)
	go mainLoop.Loop()
	t.Cleanup(mainLoop.Stop)

	w, err := NewEventLoop()
	require.NoError(t, err)
	go w.Loop()
	t.Cleanup(w.Stop)
	workers = []*EventLoop{w}

	d := NewDispatcher()
	svc := NewService("Echo")
	svc.RegisterMethod("Say", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	svc.RegisterMethod("Slow", func(ctx context.Context, payload []byte) ([]byte, error) {
		time.Sleep(500 * time.Millisecond)
		return payload, nil
	})
	d.Register(svc)

	// Start() binds its own raw socket rather than using net.Listen, so pick
	// a pseudo-random high port per run instead of retrying on EADDRINUSE.
	listenAddr := &IPNetAddr{IP: "127.0.0.1", Port: 28901 + int(time.Now().UnixNano()%500)}
	srv := NewServer(listenAddr, mainLoop, workers, d)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return listenAddr, mainLoop, workers
}

func TestChannelCallMethodHappyPath(t *testing.T) {
	addr, _, workers := startTestServer(t)

	channel := NewRPCChannel(addr, workers[0])
	ctrl := NewController()

	req := &echoMessage{data: []byte("ping")}
	resp := &echoMessage{}

	done := make(chan struct{})
	onDone := func(error) { close(done) }
	workers[0].AddTask(func() {
		channel.Init(ctrl, req, resp, onDone)
		channel.CallMethod(ctrl, "Echo.Say", req, resp, onDone)
	}, true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	require.False(t, ctrl.Failed(), ctrl.ErrorText())
	require.Equal(t, "ping", string(resp.data))
}

func TestChannelCallMethodNotInitialized(t *testing.T) {
	addr, _, workers := startTestServer(t)

	channel := NewRPCChannel(addr, workers[0])
	ctrl := NewController()

	req := &echoMessage{data: []byte("ping")}
	resp := &echoMessage{}

	done := make(chan struct{})
	workers[0].AddTask(func() {
		// Init is never called: CallMethod must refuse to proceed.
		channel.CallMethod(ctrl, "Echo.Say", req, resp, func(error) { close(done) })
	}, true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	require.True(t, ctrl.Failed())
	require.Equal(t, ChannelNotInit, ctrl.ErrorCode())
}

func TestChannelCallMethodTimeout(t *testing.T) {
	addr, _, workers := startTestServer(t)

	channel := NewRPCChannel(addr, workers[0])
	ctrl := NewController()
	ctrl.SetTimeout(50)

	req := &echoMessage{data: []byte("ping")}
	resp := &echoMessage{}

	done := make(chan struct{})
	onDone := func(error) { close(done) }
	workers[0].AddTask(func() {
		channel.Init(ctrl, req, resp, onDone)
		channel.CallMethod(ctrl, "Echo.Slow", req, resp, onDone)
	}, true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	require.True(t, ctrl.Failed())
	require.Equal(t, RPCCallTimeout, ctrl.ErrorCode())
	require.True(t, ctrl.IsCanceled())
}

func TestChannelCallMethodUnknownMethod(t *testing.T) {
	addr, _, workers := startTestServer(t)

	channel := NewRPCChannel(addr, workers[0])
	ctrl := NewController()

	req := &echoMessage{data: []byte("ping")}
	resp := &echoMessage{}

	done := make(chan struct{})
	onDone := func(error) { close(done) }
	workers[0].AddTask(func() {
		channel.Init(ctrl, req, resp, onDone)
		channel.CallMethod(ctrl, "Echo.Missing", req, resp, onDone)
	}, true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	require.True(t, ctrl.Failed())
	require.Equal(t, MethodNotFound, ctrl.ErrorCode())
}

// echoMessage is a minimal Message implementation for tests that don't
// need a realistic wire schema.
type echoMessage struct{ data []byte }

func (m *echoMessage) Marshal() ([]byte, error) { return m.data, nil }
func (m *echoMessage) Unmarshal(b []byte) error  { m.data = append([]byte(nil), b...); return nil }
