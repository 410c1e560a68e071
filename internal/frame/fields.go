package frame

import "fmt"

// NumericType identifies the wire type of one packed field. Values match the
// PackedElementField numeric type enum used by visualization consumers.
type NumericType uint8

const (
	NumericUnknown NumericType = iota
	NumericUint8
	NumericInt8
	NumericUint16
	NumericInt16
	NumericUint32
	NumericInt32
	NumericFloat32
	NumericFloat64
)

// PackedField describes one field of a packed point: its name, byte offset
// within the point record, and numeric type.
type PackedField struct {
	Name   string      `json:"name"`
	Offset uint32      `json:"offset"`
	Type   NumericType `json:"type"`
}

// PointStride is the exact byte width of one packed point: four little-endian
// float32 fields followed by one uint8, no padding.
const PointStride = 4 + 4 + 4 + 4 + 1

// pointFields is the fixed descriptor table for PointCloudFrame. It never
// varies per revolution; sinks register it once at startup.
var pointFields = []PackedField{
	{Name: "x", Offset: 0, Type: NumericFloat32},
	{Name: "y", Offset: 4, Type: NumericFloat32},
	{Name: "distance", Offset: 8, Type: NumericFloat32},
	{Name: "angle", Offset: 12, Type: NumericFloat32},
	{Name: "quality", Offset: 16, Type: NumericUint8},
}

// PointFields returns a copy of the fixed field descriptor table.
func PointFields() []PackedField {
	out := make([]PackedField, len(pointFields))
	copy(out, pointFields)
	return out
}

func widthOf(t NumericType) uint32 {
	switch t {
	case NumericUint8, NumericInt8:
		return 1
	case NumericUint16, NumericInt16:
		return 2
	case NumericUint32, NumericInt32, NumericFloat32:
		return 4
	case NumericFloat64:
		return 8
	}
	return 0
}

// The descriptor table and stride are a compile-time contract; a mismatch is
// a programming error, so fail loudly at process start.
func init() {
	var offset uint32
	for _, f := range pointFields {
		if f.Offset != offset {
			panic(fmt.Sprintf("frame: field %q offset %d, want %d", f.Name, f.Offset, offset))
		}
		offset += widthOf(f.Type)
	}
	if offset != PointStride {
		panic(fmt.Sprintf("frame: field widths sum to %d, stride is %d", offset, PointStride))
	}
}
