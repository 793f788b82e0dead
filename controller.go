package rapidrpc

import "sync"

const defaultTimeoutMs = 1000

// Controller is the per-call mutable context: error state, deadline, and
// addressing. It mirrors rpc_controller.h/.cc field-for-field.
type Controller struct {
	mu sync.Mutex

	errCode ErrorCode
	errInfo string
	msgID   string

	localAddr NetAddr
	peerAddr  NetAddr

	timeoutMs int

	isFailed   bool
	isCanceled bool
}

// NewController returns a Controller in its freshly-constructed state.
func NewController() *Controller {
	return &Controller{timeoutMs: defaultTimeoutMs}
}

// Reset returns the controller to its initial state, deep-equal to a
// freshly constructed one.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errCode = OK
	c.errInfo = ""
	c.msgID = ""
	c.isFailed = false
	c.isCanceled = false
	c.localAddr = nil
	c.peerAddr = nil
	c.timeoutMs = defaultTimeoutMs
}

// SetError records a failure kind and description, marking the call failed.
func (c *Controller) SetError(code ErrorCode, info string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errCode = code
	c.errInfo = info
	c.isFailed = true
}

// ErrorCode returns the last recorded error kind.
func (c *Controller) ErrorCode() ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errCode
}

// ErrorText returns the recorded error description.
func (c *Controller) ErrorText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errInfo
}

// Failed reports whether the call has failed.
func (c *Controller) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isFailed
}

// StartCancel marks the call canceled; cancellation is cooperative and
// observational, not ordered (see spec §5).
func (c *Controller) StartCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isCanceled = true
}

// IsCanceled reports whether the call has been canceled.
func (c *Controller) IsCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCanceled
}

// SetTimeout sets the call deadline in milliseconds.
func (c *Controller) SetTimeout(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeoutMs = ms
}

// Timeout returns the configured deadline in milliseconds.
func (c *Controller) Timeout() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeoutMs
}

// SetMsgID sets the msg-id correlating this call's request/response.
func (c *Controller) SetMsgID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgID = id
}

// MsgID returns the msg-id correlating this call's request/response.
func (c *Controller) MsgID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgID
}

// SetLocalAddr records the local address observed for this call.
func (c *Controller) SetLocalAddr(addr NetAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localAddr = addr
}

// LocalAddr returns the local address recorded for this call.
func (c *Controller) LocalAddr() NetAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAddr
}

// SetPeerAddr records the peer address observed for this call.
func (c *Controller) SetPeerAddr(addr NetAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerAddr = addr
}

// PeerAddr returns the peer address recorded for this call.
func (c *Controller) PeerAddr() NetAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerAddr
}
