package hwp

import (
	"encoding/binary"
	"fmt"
	"math"

	"exgen/cfb"
)

// StyleDef describes named style of a generated document.
type StyleDef struct {
	Name        string
	EnglishName string

	Font               string
	SizePt             float64
	WidthPercent       int
	SpacingPercent     int
	Bold               bool
	LineSpacingPercent int
	// hanging indent, positive values move following lines right
	IndentPt float64
}

// PageSetup is page geometry in millimeters.
type PageSetup struct {
	Width, Height            float64
	Top, Bottom, Left, Right float64
	Header, Footer, Gutter   float64
}

// Skeleton is a recipe for a minimal but complete HWP 5 document: document
// information with given styles, one section with page and column
// definitions and optional body paragraphs in style 0.
type Skeleton struct {
	Compressed  bool
	Styles      []StyleDef
	Page        PageSetup
	Columns     int
	ColumnGapMM float64
	Paragraphs  []string
}

// DefaultSkeleton returns recipe of the built in template: A4 page, two
// columns and the styles exam sheets are usually bound to.
func DefaultSkeleton() Skeleton {
	return Skeleton{
		Compressed: true,
		Styles: []StyleDef{
			{Name: "바탕글", EnglishName: "Normal", Font: "함초롬바탕", SizePt: 10, WidthPercent: 100, LineSpacingPercent: 160},
			{Name: "본문", EnglishName: "Body", Font: "함초롬바탕", SizePt: 10, WidthPercent: 100, LineSpacingPercent: 160},
			{Name: "문제", EnglishName: "Question", Font: "중고딕", SizePt: 9.5, WidthPercent: 95, SpacingPercent: -5, LineSpacingPercent: 140, IndentPt: 13.8},
			{Name: "지문", EnglishName: "Passage", Font: "휴먼명조", SizePt: 9.5, WidthPercent: 95, SpacingPercent: -5, LineSpacingPercent: 140, IndentPt: 13.8},
		},
		Page: PageSetup{
			Width: 210, Height: 297,
			Top: 15, Bottom: 10, Left: 15, Right: 15,
			Header: 0, Footer: 5, Gutter: 0,
		},
		Columns:     2,
		ColumnGapMM: 8,
	}
}

// DefaultTemplate returns image of the built in template.
func DefaultTemplate() ([]byte, error) {
	return DefaultSkeleton().Build()
}

func toUnit(pt float64) int32 {
	return int32(math.Round(pt * 100))
}

// Build produces compound file image.
func (s Skeleton) Build() ([]byte, error) {
	if len(s.Styles) == 0 {
		return nil, fmt.Errorf("skeleton without styles")
	}
	if len(s.Styles) > 255 {
		return nil, fmt.Errorf("too many styles: %d", len(s.Styles))
	}

	docInfo, section := s.docInfo(), s.section()

	hdr := FileHeader{Version: DefaultVersion}
	if s.Compressed {
		var err error
		hdr.Properties |= FlagCompressed
		if docInfo, err = Deflate(docInfo, 9); err != nil {
			return nil, err
		}
		if section, err = DeflateSection(section); err != nil {
			return nil, err
		}
	}
	return cfb.Build([]cfb.Node{
		{Path: StreamFileHeader, Data: hdr.Encode()},
		{Path: StreamDocInfo, Data: docInfo},
		{Path: SectionName(0), Data: section},
	})
}

func (s Skeleton) docInfo() []byte {
	// one face list shared by every language group
	var faces []string
	faceIDs := make(map[string]uint16)
	for _, st := range s.Styles {
		if _, ok := faceIDs[st.Font]; !ok {
			faceIDs[st.Font] = uint16(len(faces))
			faces = append(faces, st.Font)
		}
	}

	var ids IDMappings
	for i := range LanguageCount {
		ids[IDFontHangul+i] = int32(len(faces))
	}
	ids[IDBorderFill] = 1
	ids[IDCharShape] = int32(len(s.Styles))
	ids[IDTabDef] = 1
	ids[IDParaShape] = int32(len(s.Styles))
	ids[IDStyle] = int32(len(s.Styles))

	var out []byte
	out = AppendRecord(out, TagDocumentProperties, 0, documentProperties())
	out = AppendRecord(out, TagIDMappings, 0, ids.Encode(nil))
	for range LanguageCount {
		for _, f := range faces {
			out = AppendRecord(out, TagFaceName, 1, FaceName{Name: f}.Encode())
		}
	}
	out = AppendRecord(out, TagBorderFill, 1, make([]byte, 2+4*6+6+8))
	for _, st := range s.Styles {
		out = AppendRecord(out, TagCharShape, 1, st.charShape(faceIDs[st.Font]).Encode())
	}
	out = AppendRecord(out, TagTabDef, 1, make([]byte, 8))
	for _, st := range s.Styles {
		out = AppendRecord(out, TagParaShape, 1, st.paraShape().Encode())
	}
	for i, st := range s.Styles {
		out = AppendRecord(out, TagStyle, 1, Style{
			Name:        st.Name,
			EnglishName: st.EnglishName,
			NextStyleID: uint8(i),
			LangID:      0x412,
			ParaShapeID: uint16(i),
			CharShapeID: uint16(i),
		}.Encode())
	}
	return out
}

func documentProperties() []byte {
	out := binary.LittleEndian.AppendUint16(nil, 1) // sections
	for range 6 {
		// page, footnote, endnote, picture, table and equation numbering start
		out = binary.LittleEndian.AppendUint16(out, 1)
	}
	return append(out, make([]byte, 12)...)
}

// CharShapeFor builds character shape used for text with given attributes,
// face is the index of the font in every language group.
func CharShapeFor(face uint16, sizePt float64, width, spacing int, bold, underline bool) CharShape {
	c := CharShape{BaseSize: toUnit(sizePt), ShadowGap: [2]int8{10, 10}, ShadowColor: 0xC0C0C0, ShadeColor: 0xFFFFFFFF}
	for i := range LanguageCount {
		c.FaceIDs[i] = face
		c.Ratios[i] = uint8(max(min(width, 200), 50))
		c.Spacings[i] = int8(max(min(spacing, 50), -50))
		c.RelSizes[i] = 100
	}
	if bold {
		c.Property |= CharBold
	}
	if underline {
		c.Property |= CharUnderline
	}
	return c
}

// ParaShapeFor builds paragraph shape with percent line spacing and hanging
// indent in points.
func ParaShapeFor(lineSpacing int, indentPt float64, align Alignment, grid bool) ParaShape {
	p := ParaShape{
		Indent:         -toUnit(indentPt),
		LineSpacingOld: int32(lineSpacing),
		LineSpacing:    uint32(lineSpacing),
		Property3:      LineSpacingPercent,
	}
	p.SetAlignment(align)
	p.SetUseGrid(grid)
	return p
}

func (st StyleDef) charShape(face uint16) CharShape {
	return CharShapeFor(face, st.SizePt, st.WidthPercent, st.SpacingPercent, st.Bold, false)
}

func (st StyleDef) paraShape() ParaShape {
	ls := st.LineSpacingPercent
	if ls == 0 {
		ls = 160
	}
	return ParaShapeFor(ls, st.IndentPt, AlignJustify, false)
}

// DefaultLineSeg returns single line layout hint for a paragraph, the word
// processor recalculates layout on load.
func DefaultLineSeg(sizePt float64, lineSpacing int) LineSeg {
	h := toUnit(sizePt)
	return LineSeg{
		LineHeight:  h,
		TextHeight:  h,
		BaselineGap: h * 85 / 100,
		LineSpacing: h * int32(max(lineSpacing-100, 0)) / 100,
		Flags:       0x00060000,
	}
}

func appendControl(dst []byte, id uint32) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, ctrlSectionColumnDef)
	dst = binary.LittleEndian.AppendUint32(dst, id)
	dst = append(dst, make([]byte, 8)...)
	return binary.LittleEndian.AppendUint16(dst, ctrlSectionColumnDef)
}

func (s Skeleton) section() []byte {
	sizePt := s.Styles[0].SizePt

	// first paragraph holds section and column definitions
	text := appendControl(nil, CtrlSectionDef)
	text = appendControl(text, CtrlColumnDef)
	text = binary.LittleEndian.AppendUint16(text, ctrlParaBreak)

	var out []byte
	out = AppendRecord(out, TagParaHeader, 0, ParaHeader{
		Chars:          uint32(len(text) / 2),
		ControlMask:    1 << ctrlSectionColumnDef,
		CharShapeCount: 1,
		LineAlignCount: 1,
	}.Encode())
	out = AppendRecord(out, TagParaText, 1, text)
	out = AppendRecord(out, TagParaCharShape, 1, EncodeParaCharShape([]CharShapeRun{{}}))
	out = AppendRecord(out, TagParaLineSeg, 1, EncodeLineSegs([]LineSeg{DefaultLineSeg(sizePt, 160)}))

	secd := binary.LittleEndian.AppendUint32(nil, CtrlSectionDef)
	secd = binary.LittleEndian.AppendUint32(secd, 0)
	secd = binary.LittleEndian.AppendUint16(secd, uint16(MMToUnit(s.ColumnGapMM)))
	secd = append(secd, make([]byte, 4)...) // grids
	secd = binary.LittleEndian.AppendUint32(secd, 8000)
	secd = append(secd, make([]byte, 10)...) // numbering
	out = AppendRecord(out, TagCtrlHeader, 1, secd)

	p := s.Page
	out = AppendRecord(out, TagPageDef, 2, PageDef{
		Width: MMToUnit(p.Width), Height: MMToUnit(p.Height),
		Left: MMToUnit(p.Left), Right: MMToUnit(p.Right),
		Top: MMToUnit(p.Top), Bottom: MMToUnit(p.Bottom),
		Header: MMToUnit(p.Header), Footer: MMToUnit(p.Footer), Gutter: MMToUnit(p.Gutter),
	}.Encode())
	for range 2 {
		out = AppendRecord(out, TagFootnoteShape, 2, make([]byte, 28))
	}
	for range 3 {
		pbf := binary.LittleEndian.AppendUint32(nil, 1)
		pbf = append(pbf, make([]byte, 8)...)
		pbf = binary.LittleEndian.AppendUint16(pbf, 1)
		out = AppendRecord(out, TagPageBorderFill, 2, pbf)
	}

	cols := max(s.Columns, 1)
	cold := binary.LittleEndian.AppendUint32(nil, CtrlColumnDef)
	cold = binary.LittleEndian.AppendUint16(cold, uint16(cols)<<columnCountShift|columnSameWidth)
	cold = binary.LittleEndian.AppendUint16(cold, uint16(MMToUnit(s.ColumnGapMM)))
	cold = append(cold, make([]byte, 8)...) // divider line
	out = AppendRecord(out, TagCtrlHeader, 1, cold)

	for _, t := range s.Paragraphs {
		enc := EncodeParaText(t)
		out = AppendRecord(out, TagParaHeader, 0, ParaHeader{
			Chars:          uint32(len(enc) / 2),
			CharShapeCount: 1,
			LineAlignCount: 1,
		}.Encode())
		if len(enc) > 2 {
			out = AppendRecord(out, TagParaText, 1, enc)
		}
		out = AppendRecord(out, TagParaCharShape, 1, EncodeParaCharShape([]CharShapeRun{{}}))
		out = AppendRecord(out, TagParaLineSeg, 1, EncodeLineSegs([]LineSeg{DefaultLineSeg(sizePt, 160)}))
	}
	return out
}
