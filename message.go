package rapidrpc

// Message is the payload serializer contract. The RPC plane never inspects
// payload bytes itself; it only asks the declared request/response type to
// round-trip itself. A conforming schema-driven encoder (protobuf, or the
// hand-rolled protowire-backed messages in rpcpb) only needs to satisfy
// this interface to plug into the dispatcher and channel.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}
