package rapidrpc

import (
	"sync"
	"time"
)

// RPCChannel drives one client-side call end to end: mint a msg-id,
// serialize the request, arm a deadline, dial/reuse the connection, wait
// for the matching reply, and deserialize it — the Go rendering of
// rpc_channel.cc's CallMethod. One channel serves one call: Init marks the
// channel ready and gates CallMethod, matching rpc_channel.cc's m_is_init
// flag; it does not store the references passed to it.
type RPCChannel struct {
	client *Client
	loop   *EventLoop
	gen    *MsgIDGenerator

	mu          sync.Mutex
	initialized bool
}

// NewRPCChannel constructs a channel that calls peer over loop.
func NewRPCChannel(peer NetAddr, loop *EventLoop) *RPCChannel {
	return &RPCChannel{
		client: NewClient(peer, loop),
		loop:   loop,
		gen:    NewMsgIDGenerator(),
	}
}

// Init latches this channel as ready to carry one call. ctrl, req, resp,
// and done are the same references the caller will go on to pass to
// CallMethod; Init itself only records that initialization happened, so
// that a CallMethod invoked before it fails with ChannelNotInit rather
// than silently proceeding. Subsequent Init calls are ignored, mirroring
// rpc_channel.cc's m_is_init gate never being un-set.
func (ch *RPCChannel) Init(ctrl *Controller, req, resp Message, done func(error)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.initialized = true
}

func (ch *RPCChannel) isInitialized() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.initialized
}

// CallMethod invokes method ("Service.Method") with req, populating resp
// and ctrl, and calling done once the call completes (successfully,
// with an error, or on timeout). done is always invoked exactly once.
//
// Steps, matching rpc_channel.cc: mint or reuse ctrl's msg-id; fail with
// CHANNEL_NOT_INIT if Init was never called; serialize req; arm a
// one-shot deadline timer; connect (dialing lazily); write the frame;
// wait for the msg-id-matched reply; cancel the deadline timer; on
// success, deserialize into resp, on failure, copy the error into ctrl;
// invoke done; finally close the client connection.
func (ch *RPCChannel) CallMethod(ctrl *Controller, method string, req, resp Message, done func(error)) {
	msgID := ctrl.MsgID()
	if msgID == "" {
		msgID = ch.gen.Next()
		ctrl.SetMsgID(msgID)
	}

	if !ch.isInitialized() {
		notInit := NewError(ChannelNotInit, "channel not initialized")
		ctrl.SetError(notInit.Code, notInit.Info)
		done(notInit)
		return
	}

	payload, err := req.Marshal()
	if err != nil {
		ctrl.SetError(FailedSerialize, err.Error())
		done(NewError(FailedSerialize, err.Error()))
		return
	}

	frame := &Frame{MsgID: msgID, Method: method, Payload: payload}

	timeoutMs := ctrl.Timeout()
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	completed := make(chan struct{}, 1)
	var timerEvent *TimerEvent
	var activeConn *Connection

	finish := func(replyErr error) {
		select {
		case completed <- struct{}{}:
		default:
			return
		}
		if timerEvent != nil {
			ch.loop.DeleteTimer(timerEvent)
		}
		if activeConn != nil {
			activeConn.CancelCall(msgID)
		}
		if replyErr != nil {
			if rerr, ok := replyErr.(*Error); ok {
				ctrl.SetError(rerr.Code, rerr.Info)
			} else {
				ctrl.SetError(FailedGetReply, replyErr.Error())
			}
		}
		done(replyErr)
		ch.client.Close()
	}

	onReply := func(frame *Frame, err error) {
		if err != nil {
			finish(err)
			return
		}
		if frame.ErrCode != OK {
			finish(NewError(frame.ErrCode, frame.ErrInfo))
			return
		}
		if uerr := resp.Unmarshal(frame.Payload); uerr != nil {
			finish(NewError(FailedDeserialize, uerr.Error()))
			return
		}
		finish(nil)
	}

	timerEvent = NewTimerEvent(time.Duration(timeoutMs)*time.Millisecond, false, func() {
		ctrl.StartCancel()
		finish(NewError(RPCCallTimeout, "rpc call timed out"))
	})
	ch.loop.AddTimer(timerEvent)

	ch.client.Connect(func(conn *Connection, connErr error) {
		if connErr != nil {
			finish(connErr)
			return
		}
		activeConn = conn
		conn.CallAsync(frame, onReply)
	})
}

// Close releases the channel's underlying connection.
func (ch *RPCChannel) Close() {
	ch.client.Close()
}
