package hwp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// StyleIDOffset is offset of the style reference byte within PARA_HEADER
// payload.
const StyleIDOffset = 10

const paraHeaderSize = 24

// ParaHeader is decoded PARA_HEADER record.
type ParaHeader struct {
	// Number of WCHAR units in paragraph text including final paragraph break.
	// High bit may be set by the word processor on the last paragraph of a list.
	Chars            uint32
	ControlMask      uint32
	ParaShapeID      uint16
	StyleID          uint8
	DivideSort       uint8
	CharShapeCount   uint16
	RangeTagCount    uint16
	LineAlignCount   uint16
	InstanceID       uint32
	TrackChangeMerge uint16
}

func DecodeParaHeader(b []byte) (ParaHeader, error) {
	r := &reader{b: b}
	p := ParaHeader{
		Chars:          r.u32(),
		ControlMask:    r.u32(),
		ParaShapeID:    r.u16(),
		StyleID:        r.u8(),
		DivideSort:     r.u8(),
		CharShapeCount: r.u16(),
		RangeTagCount:  r.u16(),
		LineAlignCount: r.u16(),
		InstanceID:     r.u32(),
	}
	if r.err != nil {
		return ParaHeader{}, fmt.Errorf("PARA_HEADER: %w", r.err)
	}
	if r.left() >= 2 {
		p.TrackChangeMerge = r.u16()
	}
	return p, nil
}

func (p ParaHeader) Encode() []byte {
	out := make([]byte, 0, paraHeaderSize)
	out = binary.LittleEndian.AppendUint32(out, p.Chars)
	out = binary.LittleEndian.AppendUint32(out, p.ControlMask)
	out = binary.LittleEndian.AppendUint16(out, p.ParaShapeID)
	out = append(out, p.StyleID, p.DivideSort)
	out = binary.LittleEndian.AppendUint16(out, p.CharShapeCount)
	out = binary.LittleEndian.AppendUint16(out, p.RangeTagCount)
	out = binary.LittleEndian.AppendUint16(out, p.LineAlignCount)
	out = binary.LittleEndian.AppendUint32(out, p.InstanceID)
	out = binary.LittleEndian.AppendUint16(out, p.TrackChangeMerge)
	return out
}

// Text control characters.
const (
	ctrlSectionColumnDef = 2
	ctrlTab              = 9
	ctrlLineBreak        = 10
	ctrlParaBreak        = 13
	ctrlHyphen           = 24
	ctrlBundleSpace      = 30
	ctrlFixedSpace       = 31
)

// controlWidth returns number of WCHAR units occupied by control code.
func controlWidth(code uint16) int {
	switch {
	case code >= 32:
		return 1
	case code == 0, code == ctrlLineBreak, code == ctrlParaBreak, code >= ctrlHyphen:
		return 1
	default:
		// inline and extended controls carry 6 units of payload and repeat the code
		return 8
	}
}

// DecodeParaText extracts plain text from PARA_TEXT payload, inline and
// extended controls are dropped, tabs and line breaks are kept.
func DecodeParaText(b []byte) string {
	text := make([]byte, 0, len(b))
	for i := 0; i+1 < len(b); {
		c := binary.LittleEndian.Uint16(b[i:])
		w := controlWidth(c)
		i += 2 * w
		if c >= 32 {
			text = binary.LittleEndian.AppendUint16(text, c)
			continue
		}
		switch c {
		case ctrlTab:
			text = binary.LittleEndian.AppendUint16(text, '\t')
		case ctrlLineBreak:
			text = binary.LittleEndian.AppendUint16(text, '\n')
		case ctrlHyphen:
			text = binary.LittleEndian.AppendUint16(text, '-')
		case ctrlBundleSpace, ctrlFixedSpace:
			text = binary.LittleEndian.AppendUint16(text, ' ')
		}
	}
	// unpaired surrogates become replacement characters
	out, _ := utf16le.NewDecoder().Bytes(text)
	return string(out)
}

// EncodeParaText encodes paragraph text followed by paragraph break. Text
// must not contain paragraph breaks, tabs are written as spaces and other
// control characters are dropped.
func EncodeParaText(s string) []byte {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 32:
			return -1
		}
		return r
	}, s)
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// invalid UTF-8 is replaced by encoder, never happens
		out = nil
	}
	return binary.LittleEndian.AppendUint16(out, ctrlParaBreak)
}

// TextUnits returns paragraph length in WCHAR units as EncodeParaText would
// write it, without the paragraph break.
func TextUnits(s string) int {
	return (len(EncodeParaText(s)) - 2) / 2
}

// CharShapeRun binds character shape to text starting at Pos (in WCHAR
// units).
type CharShapeRun struct {
	Pos         uint32
	CharShapeID uint32
}

func DecodeParaCharShape(b []byte) ([]CharShapeRun, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: PARA_CHAR_SHAPE has %d bytes", ErrMalformedRecord, len(b))
	}
	out := make([]CharShapeRun, 0, len(b)/8)
	for i := 0; i < len(b); i += 8 {
		out = append(out, CharShapeRun{
			Pos:         binary.LittleEndian.Uint32(b[i:]),
			CharShapeID: binary.LittleEndian.Uint32(b[i+4:]),
		})
	}
	return out, nil
}

func EncodeParaCharShape(runs []CharShapeRun) []byte {
	out := make([]byte, 0, 8*len(runs))
	for _, r := range runs {
		out = binary.LittleEndian.AppendUint32(out, r.Pos)
		out = binary.LittleEndian.AppendUint32(out, r.CharShapeID)
	}
	return out
}

// LineSeg is PARA_LINE_SEG entry.
type LineSeg struct {
	TextStart    uint32
	VerticalPos  int32
	LineHeight   int32
	TextHeight   int32
	BaselineGap  int32
	LineSpacing  int32
	ColumnStart  int32
	SegmentWidth int32
	Flags        uint32
}

func EncodeLineSegs(segs []LineSeg) []byte {
	out := make([]byte, 0, 36*len(segs))
	for _, s := range segs {
		out = binary.LittleEndian.AppendUint32(out, s.TextStart)
		for _, v := range []int32{s.VerticalPos, s.LineHeight, s.TextHeight, s.BaselineGap, s.LineSpacing, s.ColumnStart, s.SegmentWidth} {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
		out = binary.LittleEndian.AppendUint32(out, s.Flags)
	}
	return out
}

// Paragraph is a level-0 paragraph of a section with all its child records.
type Paragraph struct {
	Header ParaHeader
	// index of PARA_HEADER in records slice
	Index int
	// records of this paragraph, header included
	Records []Record
}

// Text returns decoded text of the paragraph.
func (p *Paragraph) Text() string {
	for _, r := range p.Records[1:] {
		if r.Tag == TagParaText && r.Level == p.Records[0].Level+1 {
			return DecodeParaText(r.Data)
		}
	}
	return ""
}

// Paragraphs groups section records into top level paragraphs. Nested
// paragraphs (table cells, headers) stay inside their owner.
func Paragraphs(recs []Record) ([]Paragraph, error) {
	var out []Paragraph
	for i, r := range recs {
		if r.Level == 0 && r.Tag != TagParaHeader {
			return nil, fmt.Errorf("%w: unexpected %s at top level", ErrMalformedRecord, TagName(r.Tag))
		}
		if r.Level == 0 {
			h, err := DecodeParaHeader(r.Data)
			if err != nil {
				return nil, fmt.Errorf("paragraph %d: %w", len(out), err)
			}
			out = append(out, Paragraph{Header: h, Index: i})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: section does not start with paragraph", ErrMalformedRecord)
		}
		p := &out[len(out)-1]
		p.Records = append(p.Records, r)
	}
	return out, nil
}
