// Package wire implements the hand-rolled length-delimited framing format
// spoken by the Gen3 trait-handler service: varint, 64-bit fixed,
// length-delimited bytes, and 32-bit fixed wire types, tagged with
// (field_number<<3)|wire_type. It is not backed by
// google.golang.org/protobuf's wire marshaling — that package reaches this
// module only as grpc's own transitive dependency, never imported here.
package wire

import "encoding/binary"

// WireType identifies how a field's value is encoded on the wire.
type WireType int

const (
	Varint  WireType = 0
	Fixed64 WireType = 1
	Bytes   WireType = 2
	Fixed32 WireType = 5
)

// Fields maps a field number to every value recorded for it, in encounter
// order, matching the reference decoder's "repeated field" semantics.
type Fields map[int][]any

// Get returns the first recorded value for num, or nil if absent.
func (f Fields) Get(num int) any {
	vals := f[num]
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// GetBytes returns the first value for num as []byte, or nil if absent or
// not bytes-typed.
func (f Fields) GetBytes(num int) []byte {
	b, _ := f.Get(num).([]byte)
	return b
}

// GetInt returns the first value for num as a uint64, or def if absent or
// not an integer.
func (f Fields) GetInt(num int, def uint64) uint64 {
	switch v := f.Get(num).(type) {
	case uint64:
		return v
	default:
		return def
	}
}

// decodeVarint reads a little-endian base-128 varint starting at offset,
// returning the value and the offset of the next byte.
func decodeVarint(data []byte, offset int) (uint64, int) {
	var result uint64
	var shift uint
	for offset < len(data) {
		b := data[offset]
		offset++
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, offset
}

// Parse decodes raw bytes into a field_number -> values mapping. Malformed
// trailing bytes are dropped rather than erroring, mirroring the device's
// own tolerant decoder: a partially-truncated frame yields whatever fields
// parsed cleanly before the truncation point.
func Parse(data []byte) Fields {
	fields := make(Fields)
	offset := 0
	for offset < len(data) {
		tag, next := decodeVarint(data, offset)
		offset = next
		fieldNum := int(tag >> 3)
		wireType := WireType(tag & 0x07)

		var value any
		switch wireType {
		case Varint:
			v, next := decodeVarint(data, offset)
			value = v
			offset = next
		case Fixed64:
			if offset+8 > len(data) {
				return fields
			}
			value = binary.LittleEndian.Uint64(data[offset : offset+8])
			offset += 8
		case Bytes:
			length, next := decodeVarint(data, offset)
			offset = next
			if offset+int(length) > len(data) {
				return fields
			}
			value = append([]byte(nil), data[offset:offset+int(length)]...)
			offset += int(length)
		case Fixed32:
			if offset+4 > len(data) {
				return fields
			}
			value = binary.LittleEndian.Uint32(data[offset : offset+4])
			offset += 4
		default:
			return fields
		}
		fields[fieldNum] = append(fields[fieldNum], value)
	}
	return fields
}

// MinMaxAvg parses a {min:1, max:2, avg:3} sub-message of raw varints.
func MinMaxAvg(data []byte) (min, max, avg uint64) {
	f := Parse(data)
	return f.GetInt(1, 0), f.GetInt(2, 0), f.GetInt(3, 0)
}

// EncodeVarint encodes v as a little-endian base-128 varint.
func EncodeVarint(v uint64) []byte {
	var out []byte
	for v > 0x7F {
		out = append(out, byte(v&0x7F)|0x80)
		v >>= 7
	}
	return append(out, byte(v&0x7F))
}

func tag(fieldNum int, wt WireType) []byte {
	return EncodeVarint(uint64(fieldNum)<<3 | uint64(wt))
}

// EncodeVarintField encodes a varint-typed field (tag + value).
func EncodeVarintField(fieldNum int, v uint64) []byte {
	return append(tag(fieldNum, Varint), EncodeVarint(v)...)
}

// EncodeBytesField encodes a length-delimited field (tag + length + value).
func EncodeBytesField(fieldNum int, v []byte) []byte {
	out := append(tag(fieldNum, Bytes), EncodeVarint(uint64(len(v)))...)
	return append(out, v...)
}

// EncodeStringField encodes a UTF-8 string as a length-delimited field.
func EncodeStringField(fieldNum int, v string) []byte {
	return EncodeBytesField(fieldNum, []byte(v))
}
