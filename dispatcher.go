package rapidrpc

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/qx-io/rapidrpc/metrics"
)

// HandlerFunc handles one decoded request payload and returns the
// response payload to serialize back, or an error to report as a failed
// call. ctx carries the msg-id/method published via WithCallContext.
type HandlerFunc func(ctx context.Context, reqPayload []byte) ([]byte, error)

// Service is a named collection of methods, the Go analogue of a
// protobuf service descriptor's runtime registration in dispatcher.cc.
type Service struct {
	Name    string
	Methods map[string]HandlerFunc
}

// NewService constructs an empty Service named name.
func NewService(name string) *Service {
	return &Service{Name: name, Methods: make(map[string]HandlerFunc)}
}

// RegisterMethod adds a handler for methodName under this service.
func (s *Service) RegisterMethod(methodName string, h HandlerFunc) {
	s.Methods[methodName] = h
}

// Dispatcher is the service/method registry and request router described
// by dispatcher.cc: services register themselves once at startup, and
// every inbound request is resolved to a handler via "Service.Method".
type Dispatcher struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{services: make(map[string]*Service)}
}

// Register adds svc to the dispatcher. Registering the same name again
// overwrites the previous registration, matching the source's map insert
// semantics (registration is not expected to race with dispatch).
func (d *Dispatcher) Register(svc *Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[svc.Name] = svc
}

// parseServiceAndMethod splits "Service.Method" at the first '.',
// mirroring dispatcher.cc's parseServiceAndMethodName: it rejects a
// missing separator or either half being empty, but does not reject
// further dots in the method half.
func parseServiceAndMethod(full string) (service, method string, ok bool) {
	i := strings.IndexByte(full, '.')
	if i < 0 || i == 0 || i == len(full)-1 {
		return "", "", false
	}
	return full[:i], full[i+1:], true
}

// Dispatch resolves req.Method, invokes the matching handler, and
// populates resp in place, following dispatcher.cc's nine-step algorithm:
// parse name, look up service, look up method, publish the call context,
// invoke, and translate any error into resp's error fields (or a
// dispatch-level error code if resolution itself failed).
func (d *Dispatcher) Dispatch(req *Frame, resp *Frame) {
	resp.MsgID = req.MsgID
	resp.Method = req.Method

	defer func() {
		metrics.DispatchedTotal.WithLabelValues(strconv.Itoa(int(resp.ErrCode))).Inc()
	}()

	serviceName, methodName, ok := parseServiceAndMethod(req.Method)
	if !ok {
		resp.ErrCode = ParseServiceName
		resp.ErrInfo = "malformed method name: " + req.Method
		return
	}

	d.mu.RLock()
	svc, found := d.services[serviceName]
	d.mu.RUnlock()
	if !found {
		resp.ErrCode = ServiceNotFound
		resp.ErrInfo = "service not found: " + serviceName
		return
	}

	handler, found := svc.Methods[methodName]
	if !found {
		resp.ErrCode = MethodNotFound
		resp.ErrInfo = "method not found: " + methodName
		return
	}

	ctx := WithCallContext(context.Background(), req.MsgID, req.Method)
	respPayload, err := handler(ctx, req.Payload)
	if err != nil {
		if rerr, ok := err.(*Error); ok {
			resp.ErrCode = rerr.Code
			resp.ErrInfo = rerr.Info
		} else {
			resp.ErrCode = FailedDeserialize
			resp.ErrInfo = err.Error()
		}
		return
	}

	resp.ErrCode = OK
	resp.Payload = respPayload
}
