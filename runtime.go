package rapidrpc

import "context"

// callContext carries the per-call msg-id and method-name the source
// exposes to log formatting via a thread-local Runtime singleton. Go has
// no thread-local storage; context.Context is the idiomatic substitute
// for ambient, call-scoped data, so the dispatcher threads it explicitly
// into each handler invocation instead (see DESIGN.md OQ-2).
type callContext struct {
	msgID  string
	method string
}

type callContextKey struct{}

// WithCallContext returns a context carrying msgID/method for log
// formatting, set by the dispatcher before each handler invocation.
func WithCallContext(ctx context.Context, msgID, method string) context.Context {
	return context.WithValue(ctx, callContextKey{}, &callContext{msgID: msgID, method: method})
}

// CallContextFrom reports the msg-id and method-name published by the
// dispatcher for the call running on ctx, if any.
func CallContextFrom(ctx context.Context) (msgID, method string, ok bool) {
	cc, found := ctx.Value(callContextKey{}).(*callContext)
	if !found {
		return "", "", false
	}
	return cc.msgID, cc.method, true
}
