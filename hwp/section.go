package hwp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Control identifiers, four characters packed big end first.
const (
	CtrlSectionDef = uint32('s')<<24 | uint32('e')<<16 | uint32('c')<<8 | uint32('d')
	CtrlColumnDef  = uint32('c')<<24 | uint32('o')<<16 | uint32('l')<<8 | uint32('d')
)

// MMToUnit converts millimeters to HWPUNIT (1/7200 inch).
func MMToUnit(mm float64) uint32 {
	return uint32(math.Round(mm * 7200 / 25.4))
}

// UnitToMM converts HWPUNIT to millimeters.
func UnitToMM(u uint32) float64 {
	return float64(u) * 25.4 / 7200
}

// PageDef is decoded PAGE_DEF record, all values in HWPUNIT.
type PageDef struct {
	Width, Height            uint32
	Left, Right, Top, Bottom uint32
	Header, Footer, Gutter   uint32
	Property                 uint32
}

const pageDefSize = 40

func DecodePageDef(b []byte) (PageDef, error) {
	if len(b) < pageDefSize {
		return PageDef{}, fmt.Errorf("%w: PAGE_DEF has %d bytes", ErrMalformedRecord, len(b))
	}
	var v [10]uint32
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return PageDef{
		Width: v[0], Height: v[1],
		Left: v[2], Right: v[3], Top: v[4], Bottom: v[5],
		Header: v[6], Footer: v[7], Gutter: v[8],
		Property: v[9],
	}, nil
}

func (p PageDef) Encode() []byte {
	out := make([]byte, 0, pageDefSize)
	for _, v := range []uint32{p.Width, p.Height, p.Left, p.Right, p.Top, p.Bottom, p.Header, p.Footer, p.Gutter, p.Property} {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

// CtrlID returns control identifier of CTRL_HEADER payload.
func CtrlID(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

const (
	columnCountShift = 2
	columnCountMask  = 0xFF << columnCountShift
	columnSameWidth  = 1 << 12
)

// ColumnCount returns number of columns declared by column definition
// control payload.
func ColumnCount(ctrl []byte) (int, bool) {
	if id, ok := CtrlID(ctrl); !ok || id != CtrlColumnDef || len(ctrl) < 8 {
		return 0, false
	}
	prop := binary.LittleEndian.Uint16(ctrl[4:])
	return int(prop&columnCountMask) >> columnCountShift, true
}

// SetColumns updates column count and gap (HWPUNIT) of column definition
// control payload in place. Only equal width definitions can be changed,
// others carry explicit widths per column.
func SetColumns(ctrl []byte, count int, gap uint16) error {
	if _, ok := ColumnCount(ctrl); !ok {
		return fmt.Errorf("%w: not a column definition", ErrMalformedRecord)
	}
	if count < 1 || count > 255 {
		return fmt.Errorf("unsupported column count %d", count)
	}
	prop := binary.LittleEndian.Uint16(ctrl[4:])
	if prop&columnSameWidth == 0 && prop&columnCountMask>>columnCountShift > 1 {
		return fmt.Errorf("column definition has explicit widths")
	}
	prop = prop&^columnCountMask | uint16(count)<<columnCountShift | columnSameWidth
	binary.LittleEndian.PutUint16(ctrl[4:], prop)
	binary.LittleEndian.PutUint16(ctrl[6:], gap)
	return nil
}
