package hwp

import (
	"encoding/binary"
	"fmt"
)

// Indices into ID_MAPPINGS counters.
const (
	IDBinData = iota
	IDFontHangul
	IDFontLatin
	IDFontHanja
	IDFontJapanese
	IDFontOther
	IDFontSymbol
	IDFontUser
	IDBorderFill
	IDCharShape
	IDTabDef
	IDNumbering
	IDBullet
	IDParaShape
	IDStyle
	IDMemoShape
	IDTrackChange
	IDTrackChangeAuthor

	idMappingsCount
)

// Languages of font groups, in FACE_NAME record order.
const LanguageCount = 7

// IDMappings holds per-kind counters of DocInfo entries.
type IDMappings [idMappingsCount]int32

// DecodeIDMappings decodes ID_MAPPINGS payload. Older documents carry fewer
// counters, missing ones are zero.
func DecodeIDMappings(b []byte) (IDMappings, error) {
	var m IDMappings
	if len(b) < 4*(IDStyle+1) {
		return m, fmt.Errorf("%w: ID_MAPPINGS has %d bytes", ErrMalformedRecord, len(b))
	}
	for i := range m {
		if (i+1)*4 > len(b) {
			break
		}
		m[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m, nil
}

// Encode returns payload. Size of the original record is kept when it was
// larger, trailing counters are preserved from it.
func (m IDMappings) Encode(orig []byte) []byte {
	out := make([]byte, max(len(orig), 4*idMappingsCount))
	copy(out, orig)
	for i, v := range m {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

// FaceCount returns total number of FACE_NAME records.
func (m IDMappings) FaceCount() int {
	var n int
	for i := IDFontHangul; i <= IDFontUser; i++ {
		n += int(m[i])
	}
	return n
}

// FaceName is decoded FACE_NAME record. Only the primary name is decoded,
// the rest of the payload (alternative font, type info) is kept raw.
type FaceName struct {
	Property uint8
	Name     string
	Rest     []byte
}

func DecodeFaceName(b []byte) (FaceName, error) {
	r := &reader{b: b}
	f := FaceName{Property: r.u8(), Name: r.wstring()}
	if r.err != nil {
		return FaceName{}, fmt.Errorf("FACE_NAME: %w", r.err)
	}
	f.Rest = r.b[r.pos:]
	return f, nil
}

func (f FaceName) Encode() []byte {
	out := []byte{f.Property}
	out = appendWString(out, f.Name)
	return append(out, f.Rest...)
}

// Character property bits.
const (
	CharItalic        uint32 = 1 << 0
	CharBold          uint32 = 1 << 1
	charUnderlineMask uint32 = 3 << 2
	// underline below the text
	CharUnderline uint32 = 1 << 2
)

// CharShape is decoded CHAR_SHAPE record. Per language arrays are indexed in
// FACE_NAME group order (hangul first).
type CharShape struct {
	FaceIDs   [LanguageCount]uint16
	Ratios    [LanguageCount]uint8
	Spacings  [LanguageCount]int8
	RelSizes  [LanguageCount]uint8
	Offsets   [LanguageCount]int8
	BaseSize  int32
	Property  uint32
	ShadowGap [2]int8

	TextColor      uint32
	UnderlineColor uint32
	ShadeColor     uint32
	ShadowColor    uint32
	BorderFillID   uint16
	StrikeColor    uint32
}

const charShapeSize = 74

func DecodeCharShape(b []byte) (CharShape, error) {
	var c CharShape
	r := &reader{b: b}
	for i := range c.FaceIDs {
		c.FaceIDs[i] = r.u16()
	}
	for i := range c.Ratios {
		c.Ratios[i] = r.u8()
	}
	for i := range c.Spacings {
		c.Spacings[i] = int8(r.u8())
	}
	for i := range c.RelSizes {
		c.RelSizes[i] = r.u8()
	}
	for i := range c.Offsets {
		c.Offsets[i] = int8(r.u8())
	}
	c.BaseSize = int32(r.u32())
	c.Property = r.u32()
	c.ShadowGap[0], c.ShadowGap[1] = int8(r.u8()), int8(r.u8())
	c.TextColor = r.u32()
	c.UnderlineColor = r.u32()
	c.ShadeColor = r.u32()
	c.ShadowColor = r.u32()
	if r.err != nil {
		return CharShape{}, fmt.Errorf("CHAR_SHAPE: %w", r.err)
	}
	// present since 5.0.2.1 and 5.0.3.0 respectively
	if r.left() >= 2 {
		c.BorderFillID = r.u16()
	}
	if r.left() >= 4 {
		c.StrikeColor = r.u32()
	}
	return c, nil
}

func (c CharShape) Encode() []byte {
	out := make([]byte, 0, charShapeSize)
	for _, v := range c.FaceIDs {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	out = append(out, c.Ratios[:]...)
	for _, v := range c.Spacings {
		out = append(out, byte(v))
	}
	out = append(out, c.RelSizes[:]...)
	for _, v := range c.Offsets {
		out = append(out, byte(v))
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(c.BaseSize))
	out = binary.LittleEndian.AppendUint32(out, c.Property)
	out = append(out, byte(c.ShadowGap[0]), byte(c.ShadowGap[1]))
	out = binary.LittleEndian.AppendUint32(out, c.TextColor)
	out = binary.LittleEndian.AppendUint32(out, c.UnderlineColor)
	out = binary.LittleEndian.AppendUint32(out, c.ShadeColor)
	out = binary.LittleEndian.AppendUint32(out, c.ShadowColor)
	out = binary.LittleEndian.AppendUint16(out, c.BorderFillID)
	out = binary.LittleEndian.AppendUint32(out, c.StrikeColor)
	return out
}

// SizePt returns base font size in points.
func (c CharShape) SizePt() float64 {
	return float64(c.BaseSize) / 100
}

func (c CharShape) Bold() bool {
	return c.Property&CharBold != 0
}

func (c CharShape) Underline() bool {
	return c.Property&charUnderlineMask != 0
}

// Paragraph alignment, bits 2-4 of ParaShape.Property1.
type Alignment uint32

const (
	AlignJustify Alignment = iota
	AlignLeft
	AlignRight
	AlignCenter
	AlignDistribute
	AlignDivide
)

// Line spacing kinds, bits 0-4 of ParaShape.Property3.
const (
	LineSpacingPercent uint32 = iota
	LineSpacingFixed
	LineSpacingSpaceOnly
	LineSpacingAtLeast
)

const (
	alignShift = 2
	alignMask  = 0x7 << alignShift
	// use grid for line spacing
	paraUseGrid uint32 = 1 << 8
)

// ParaShape is decoded PARA_SHAPE record. Margins and spacing before/after
// are stored doubled, indent is plain HWPUNIT (1/100 pt).
type ParaShape struct {
	Property1      uint32
	LeftMargin     int32
	RightMargin    int32
	Indent         int32
	PrevSpacing    int32
	NextSpacing    int32
	LineSpacingOld int32
	TabDefID       uint16
	NumberingID    uint16
	BorderFillID   uint16
	BorderOffsets  [4]int16
	Property2      uint32
	Property3      uint32
	LineSpacing    uint32
}

const paraShapeSize = 54

func DecodeParaShape(b []byte) (ParaShape, error) {
	var p ParaShape
	r := &reader{b: b}
	p.Property1 = r.u32()
	p.LeftMargin = int32(r.u32())
	p.RightMargin = int32(r.u32())
	p.Indent = int32(r.u32())
	p.PrevSpacing = int32(r.u32())
	p.NextSpacing = int32(r.u32())
	p.LineSpacingOld = int32(r.u32())
	p.TabDefID = r.u16()
	p.NumberingID = r.u16()
	p.BorderFillID = r.u16()
	for i := range p.BorderOffsets {
		p.BorderOffsets[i] = int16(r.u16())
	}
	if r.err != nil {
		return ParaShape{}, fmt.Errorf("PARA_SHAPE: %w", r.err)
	}
	p.LineSpacing = uint32(p.LineSpacingOld)
	if r.left() >= 4 {
		p.Property2 = r.u32()
	}
	if r.left() >= 8 {
		p.Property3 = r.u32()
		p.LineSpacing = r.u32()
	}
	return p, nil
}

func (p ParaShape) Encode() []byte {
	out := make([]byte, 0, paraShapeSize)
	out = binary.LittleEndian.AppendUint32(out, p.Property1)
	for _, v := range []int32{p.LeftMargin, p.RightMargin, p.Indent, p.PrevSpacing, p.NextSpacing, p.LineSpacingOld} {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	out = binary.LittleEndian.AppendUint16(out, p.TabDefID)
	out = binary.LittleEndian.AppendUint16(out, p.NumberingID)
	out = binary.LittleEndian.AppendUint16(out, p.BorderFillID)
	for _, v := range p.BorderOffsets {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	out = binary.LittleEndian.AppendUint32(out, p.Property2)
	out = binary.LittleEndian.AppendUint32(out, p.Property3)
	out = binary.LittleEndian.AppendUint32(out, p.LineSpacing)
	return out
}

func (p ParaShape) Alignment() Alignment {
	return Alignment((p.Property1 & alignMask) >> alignShift)
}

func (p *ParaShape) SetAlignment(a Alignment) {
	p.Property1 = p.Property1&^alignMask | uint32(a)<<alignShift&alignMask
}

func (p ParaShape) UseGrid() bool {
	return p.Property1&paraUseGrid != 0
}

func (p *ParaShape) SetUseGrid(on bool) {
	if on {
		p.Property1 |= paraUseGrid
	} else {
		p.Property1 &^= paraUseGrid
	}
}

// LineSpacingKind returns one of LineSpacing* constants.
func (p ParaShape) LineSpacingKind() uint32 {
	return p.Property3 & 0x1F
}

// Style is decoded STYLE record.
type Style struct {
	Name        string
	EnglishName string
	Property    uint8
	NextStyleID uint8
	LangID      int16
	ParaShapeID uint16
	CharShapeID uint16
	Rest        []byte
}

func DecodeStyle(b []byte) (Style, error) {
	r := &reader{b: b}
	s := Style{Name: r.wstring(), EnglishName: r.wstring()}
	s.Property = r.u8()
	s.NextStyleID = r.u8()
	s.LangID = int16(r.u16())
	s.ParaShapeID = r.u16()
	s.CharShapeID = r.u16()
	if r.err != nil {
		return Style{}, fmt.Errorf("STYLE: %w", r.err)
	}
	s.Rest = r.b[r.pos:]
	return s, nil
}

func (s Style) Encode() []byte {
	out := appendWString(nil, s.Name)
	out = appendWString(out, s.EnglishName)
	out = append(out, s.Property, s.NextStyleID)
	out = binary.LittleEndian.AppendUint16(out, uint16(s.LangID))
	out = binary.LittleEndian.AppendUint16(out, s.ParaShapeID)
	out = binary.LittleEndian.AppendUint16(out, s.CharShapeID)
	return append(out, s.Rest...)
}

// DocInfo is decoded "DocInfo" stream. Records keep the whole stream, typed
// slices are decoded views in record order.
type DocInfo struct {
	Records    []Record
	IDMappings IDMappings
	FaceNames  []FaceName
	CharShapes []CharShape
	ParaShapes []ParaShape
	Styles     []Style
}

// ParseDocInfo decodes decompressed "DocInfo" stream.
func ParseDocInfo(data []byte) (*DocInfo, error) {
	recs, err := ParseRecords(data)
	if err != nil {
		return nil, err
	}
	d := &DocInfo{Records: recs}
	for i, r := range recs {
		switch r.Tag {
		case TagIDMappings:
			if d.IDMappings, err = DecodeIDMappings(r.Data); err != nil {
				return nil, err
			}
		case TagFaceName:
			f, err := DecodeFaceName(r.Data)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			d.FaceNames = append(d.FaceNames, f)
		case TagCharShape:
			c, err := DecodeCharShape(r.Data)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			d.CharShapes = append(d.CharShapes, c)
		case TagParaShape:
			p, err := DecodeParaShape(r.Data)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			d.ParaShapes = append(d.ParaShapes, p)
		case TagStyle:
			s, err := DecodeStyle(r.Data)
			if err != nil {
				return nil, fmt.Errorf("record %d (style %d): %w", i, len(d.Styles), err)
			}
			d.Styles = append(d.Styles, s)
		}
	}
	return d, nil
}

// Face returns name of the face used for language lang (0 is hangul) with
// given id, FACE_NAME records are grouped by language in ID_MAPPINGS order.
func (d *DocInfo) Face(lang int, id uint16) (string, bool) {
	if lang < 0 || lang >= LanguageCount {
		return "", false
	}
	start := 0
	for i := range lang {
		start += int(d.IDMappings[IDFontHangul+i])
	}
	if int(id) >= int(d.IDMappings[IDFontHangul+lang]) {
		return "", false
	}
	idx := start + int(id)
	if idx >= len(d.FaceNames) {
		return "", false
	}
	return d.FaceNames[idx].Name, true
}
