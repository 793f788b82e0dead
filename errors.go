package rapidrpc

import "fmt"

// ErrorCode is a closed set of RPC-layer error kinds, mirroring the
// source's error_code.h enum. Zero is always success.
type ErrorCode int32

const (
	OK ErrorCode = iota
	PeerClosed
	FailedConnect
	FailedGetReply
	FailedDeserialize
	FailedSerialize
	FailedEncode
	FailedDecode
	RPCCallTimeout
	ServiceNotFound
	MethodNotFound
	ParseServiceName
	ChannelNotInit
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case PeerClosed:
		return "PEER_CLOSED"
	case FailedConnect:
		return "FAILED_CONNECT"
	case FailedGetReply:
		return "FAILED_GET_REPLY"
	case FailedDeserialize:
		return "FAILED_DESERIALIZE"
	case FailedSerialize:
		return "FAILED_SERIALIZE"
	case FailedEncode:
		return "FAILED_ENCODE"
	case FailedDecode:
		return "FAILED_DECODE"
	case RPCCallTimeout:
		return "RPC_CALL_TIMEOUT"
	case ServiceNotFound:
		return "SERVICE_NOT_FOUND"
	case MethodNotFound:
		return "METHOD_NOT_FOUND"
	case ParseServiceName:
		return "PARSE_SERVICE_NAME"
	case ChannelNotInit:
		return "CHANNEL_NOT_INIT"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int32(c))
	}
}

// Error is the error type surfaced through a Controller. It carries the
// taxonomy code alongside free-form info so callers can both switch on
// Code and log Info.
type Error struct {
	Code ErrorCode
	Info string
}

func (e *Error) Error() string {
	if e.Info == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Info)
}

// NewError builds an *Error for the given kind and description.
func NewError(code ErrorCode, info string) *Error {
	return &Error{Code: code, Info: info}
}
