package gen3

import "fmt"

// rawBytesCodec passes frame bytes straight through to/from gen3/wire,
// bypassing protobuf codegen entirely. grpc supplies HTTP/2 framing,
// multiplexing and keepalive; this codec is the only thing standing
// between that transport and the hand-rolled trait-handler frame format
// (spec §4.8.1).
type rawBytesCodec struct{}

func (rawBytesCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("gen3: rawBytesCodec.Marshal: unsupported type %T", v)
	}
	return *b, nil
}

func (rawBytesCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("gen3: rawBytesCodec.Unmarshal: unsupported type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawBytesCodec) Name() string { return "raw-span-trait" }
