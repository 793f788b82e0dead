package rapidrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoService() *Service {
	svc := NewService("Echo")
	svc.RegisterMethod("Say", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	return svc
}

func TestDispatchHappyPath(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoService())

	req := &Frame{MsgID: "1", Method: "Echo.Say", Payload: []byte("hi")}
	resp := &Frame{}
	d.Dispatch(req, resp)

	assert.Equal(t, OK, resp.ErrCode)
	assert.Equal(t, []byte("hi"), resp.Payload)
	assert.Equal(t, "1", resp.MsgID)
}

func TestDispatchUnknownService(t *testing.T) {
	d := NewDispatcher()
	req := &Frame{MsgID: "1", Method: "Missing.Say"}
	resp := &Frame{}
	d.Dispatch(req, resp)
	assert.Equal(t, ServiceNotFound, resp.ErrCode)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoService())
	req := &Frame{MsgID: "1", Method: "Echo.Missing"}
	resp := &Frame{}
	d.Dispatch(req, resp)
	assert.Equal(t, MethodNotFound, resp.ErrCode)
}

func TestDispatchMalformedMethodName(t *testing.T) {
	d := NewDispatcher()
	cases := []string{"NoSeparator", ".NoService", "NoMethod."}
	for _, m := range cases {
		req := &Frame{MsgID: "1", Method: m}
		resp := &Frame{}
		d.Dispatch(req, resp)
		assert.Equal(t, ParseServiceName, resp.ErrCode, "method %q", m)
	}
}

// A method name with more than one '.' is not malformed: only the first
// '.' separates service from method, so the remainder (including any
// further dots) is the method name verbatim.
func TestDispatchMethodNameWithExtraDots(t *testing.T) {
	d := NewDispatcher()
	svc := NewService("Too")
	svc.RegisterMethod("Many.Dots", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	d.Register(svc)

	req := &Frame{MsgID: "1", Method: "Too.Many.Dots", Payload: []byte("hi")}
	resp := &Frame{}
	d.Dispatch(req, resp)
	assert.Equal(t, OK, resp.ErrCode)
	assert.Equal(t, []byte("hi"), resp.Payload)
}

func TestRegisterIsIdempotent(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoService())
	d.Register(echoService())

	req := &Frame{MsgID: "1", Method: "Echo.Say", Payload: []byte("again")}
	resp := &Frame{}
	d.Dispatch(req, resp)
	require.Equal(t, OK, resp.ErrCode)
}

func TestDispatchPublishesCallContext(t *testing.T) {
	d := NewDispatcher()
	svc := NewService("Ctx")
	var seenMsgID, seenMethod string
	svc.RegisterMethod("Check", func(ctx context.Context, payload []byte) ([]byte, error) {
		seenMsgID, seenMethod, _ = CallContextFrom(ctx)
		return nil, nil
	})
	d.Register(svc)

	req := &Frame{MsgID: "42", Method: "Ctx.Check"}
	resp := &Frame{}
	d.Dispatch(req, resp)

	assert.Equal(t, "42", seenMsgID)
	assert.Equal(t, "Ctx.Check", seenMethod)
}
