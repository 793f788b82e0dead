package rpcpb

import "math"

func uint64FromFloat64(f float64) uint64 { return math.Float64bits(f) }
func float64FromUint64(v uint64) float64 { return math.Float64frombits(v) }
