// Package rpcpb provides the sample request/response payload types used
// by the cmd/ entry points. Full protoc-gen-go codegen needs the
// real protoc toolchain to produce message descriptors, which this
// exercise cannot invoke; instead these types hand-encode their wire
// format directly on protobuf's low-level varint/tag primitives
// (google.golang.org/protobuf/encoding/protowire), giving a real,
// wire-compatible protobuf encoding without generated descriptor bytes.
package rpcpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// OrderRequest is the sample "place an order" request payload.
type OrderRequest struct {
	OrderID  string
	Price    float64
	Quantity int32
}

const (
	orderReqFieldID       = 1
	orderReqFieldPrice    = 2
	orderReqFieldQuantity = 3
)

// Marshal implements rapidrpc.Message.
func (r *OrderRequest) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, orderReqFieldID, protowire.BytesType)
	b = protowire.AppendString(b, r.OrderID)
	b = protowire.AppendTag(b, orderReqFieldPrice, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64FromFloat64(r.Price))
	b = protowire.AppendTag(b, orderReqFieldQuantity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(r.Quantity)))
	return b, nil
}

// Unmarshal implements rapidrpc.Message.
func (r *OrderRequest) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("rpcpb: OrderRequest: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case orderReqFieldID:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderRequest: bad order_id: %w", protowire.ParseError(n))
			}
			r.OrderID = v
			data = data[n:]
		case orderReqFieldPrice:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderRequest: bad price: %w", protowire.ParseError(n))
			}
			r.Price = float64FromUint64(v)
			data = data[n:]
		case orderReqFieldQuantity:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderRequest: bad quantity: %w", protowire.ParseError(n))
			}
			r.Quantity = int32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderRequest: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// OrderResponse is the sample "place an order" response payload.
type OrderResponse struct {
	OrderID  string
	Accepted bool
}

const (
	orderRespFieldID       = 1
	orderRespFieldAccepted = 2
)

// Marshal implements rapidrpc.Message.
func (r *OrderResponse) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, orderRespFieldID, protowire.BytesType)
	b = protowire.AppendString(b, r.OrderID)
	b = protowire.AppendTag(b, orderRespFieldAccepted, protowire.VarintType)
	v := uint64(0)
	if r.Accepted {
		v = 1
	}
	b = protowire.AppendVarint(b, v)
	return b, nil
}

// Unmarshal implements rapidrpc.Message.
func (r *OrderResponse) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("rpcpb: OrderResponse: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case orderRespFieldID:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderResponse: bad order_id: %w", protowire.ParseError(n))
			}
			r.OrderID = v
			data = data[n:]
		case orderRespFieldAccepted:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderResponse: bad accepted: %w", protowire.ParseError(n))
			}
			r.Accepted = v != 0
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("rpcpb: OrderResponse: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
