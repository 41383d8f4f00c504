package native

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"exgen/assemble"
	"exgen/cfb"
	"exgen/hwp"
)

// ErrClosed is returned by operations on closed session.
var ErrClosed = errors.New("session is closed")

const lastParagraph = 0x80000000

var alignments = map[assemble.Align]hwp.Alignment{
	assemble.AlignJustify: hwp.AlignJustify,
	assemble.AlignLeft:    hwp.AlignLeft,
	assemble.AlignRight:   hwp.AlignRight,
	assemble.AlignCenter:  hwp.AlignCenter,
}

type paragraph struct {
	text        strings.Builder
	units       int
	paraShape   uint16
	lineSpacing int
	sizePt      float64
	runs        []hwp.CharShapeRun
}

func (p *paragraph) setRun(id uint16) {
	pos := uint32(p.units)
	if n := len(p.runs); n > 0 {
		last := &p.runs[n-1]
		if last.Pos == pos {
			last.CharShapeID = uint32(id)
			if n > 1 && p.runs[n-2].CharShapeID == last.CharShapeID {
				p.runs = p.runs[:n-1]
			}
			return
		}
		if last.CharShapeID == uint32(id) {
			return
		}
	}
	p.runs = append(p.runs, hwp.CharShapeRun{Pos: pos, CharShapeID: uint32(id)})
}

type session struct {
	log      *zap.Logger
	path     string
	doc      *hwp.Document
	info     *hwp.DocInfo
	sections []string
	// records of preserved first paragraph
	first  []hwp.Record
	shapes *registry
	paras  []*paragraph

	charShape uint16
	sizePt    float64
	page      *assemble.PageFormat
	columns   int
	closed    bool
}

func (s *session) newParagraph() *paragraph {
	p := &paragraph{lineSpacing: 160, sizePt: 10}
	if s.sizePt > 0 {
		p.sizePt = s.sizePt
	}
	if n := len(s.paras); n > 0 {
		prev := s.paras[n-1]
		p.paraShape, p.lineSpacing = prev.paraShape, prev.lineSpacing
	}
	p.setRun(s.charShape)
	return p
}

func (s *session) current() *paragraph {
	return s.paras[len(s.paras)-1]
}

func (s *session) SetParaFormat(f assemble.ParaFormat) error {
	if s.closed {
		return ErrClosed
	}
	align, ok := alignments[f.Align]
	if !ok {
		return fmt.Errorf("unsupported alignment %d", f.Align)
	}
	id := s.shapes.paraShape(hwp.ParaShapeFor(f.LineSpacingPercent, f.IndentPt, align, f.UseGrid))
	p := s.current()
	p.paraShape, p.lineSpacing = id, f.LineSpacingPercent
	return nil
}

func (s *session) SetCharFormat(f assemble.CharFormat) error {
	if s.closed {
		return ErrClosed
	}
	if strings.TrimSpace(f.Font) == "" {
		return errors.New("font name is empty")
	}
	c := hwp.CharShapeFor(0, f.SizePt, f.WidthPercent, f.SpacingPercent, f.Bold, f.Underline)
	for g := range hwp.LanguageCount {
		c.FaceIDs[g] = s.shapes.face(g, f.Font)
	}
	s.charShape = s.shapes.charShape(c)
	s.sizePt = f.SizePt

	p := s.current()
	p.setRun(s.charShape)
	if p.units == 0 {
		p.sizePt = f.SizePt
	} else {
		p.sizePt = max(p.sizePt, f.SizePt)
	}
	return nil
}

func (s *session) InsertText(text string) error {
	if s.closed {
		return ErrClosed
	}
	if strings.ContainsAny(text, "\r\n") {
		return errors.New("text contains paragraph break")
	}
	p := s.current()
	p.text.WriteString(text)
	p.units += hwp.TextUnits(text)
	return nil
}

func (s *session) BreakParagraph() error {
	if s.closed {
		return ErrClosed
	}
	s.paras = append(s.paras, s.newParagraph())
	return nil
}

func (s *session) Paragraphs() int {
	return 1 + len(s.paras)
}

func (s *session) SetPage(f assemble.PageFormat) error {
	if s.closed {
		return ErrClosed
	}
	s.page = &f
	return nil
}

func (s *session) SetColumns(count int) error {
	if s.closed {
		return ErrClosed
	}
	if count < 1 || count > 255 {
		return fmt.Errorf("unsupported column count %d", count)
	}
	s.columns = count
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// Save writes document back to the path it was opened from.
func (s *session) Save() error {
	if s.closed {
		return ErrClosed
	}
	section, err := s.section()
	if err != nil {
		return err
	}
	docInfo := s.shapes.docInfo(s.info, 1)

	streams := map[string][]byte{
		hwp.StreamDocInfo: docInfo,
		s.sections[0]:     section,
	}
	dropped := make(map[string]bool, len(s.sections)-1)
	for _, name := range s.sections[1:] {
		dropped[name] = true
	}

	var nodes []cfb.Node
	for _, e := range s.doc.Container.Entries() {
		if e.Storage {
			nodes = append(nodes, cfb.Node{Path: e.Path, Storage: true})
			continue
		}
		if dropped[e.Path] {
			continue
		}
		data, ok := streams[e.Path]
		if ok {
			if data, err = s.doc.Encode(e.Path, data); err != nil {
				return err
			}
		} else if data, err = s.doc.Container.ReadStream(e.Path); err != nil {
			return err
		}
		nodes = append(nodes, cfb.Node{Path: e.Path, Data: data})
	}
	img, err := cfb.Build(nodes)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, img, 0644); err != nil {
		return fmt.Errorf("unable to write document: %w", err)
	}
	s.log.Debug("Document saved",
		zap.Int("paragraphs", s.Paragraphs()),
		zap.Int("new char shapes", len(s.shapes.newChars)),
		zap.Int("new para shapes", len(s.shapes.newParas)))
	return nil
}

func (s *session) section() ([]byte, error) {
	var out []byte
	for i, r := range s.first {
		data := r.Data
		switch {
		case i == 0:
			h, err := hwp.DecodeParaHeader(data)
			if err != nil {
				return nil, err
			}
			h.Chars &^= lastParagraph
			data = h.Encode()
			if len(r.Data) > len(data) {
				data = append(data, r.Data[len(data):]...)
			}
		case r.Tag == hwp.TagPageDef && s.page != nil:
			pd, err := hwp.DecodePageDef(data)
			if err != nil {
				return nil, err
			}
			pd.Top, pd.Bottom = hwp.MMToUnit(s.page.Top), hwp.MMToUnit(s.page.Bottom)
			pd.Left, pd.Right = hwp.MMToUnit(s.page.Left), hwp.MMToUnit(s.page.Right)
			pd.Header, pd.Footer = hwp.MMToUnit(s.page.Header), hwp.MMToUnit(s.page.Footer)
			pd.Gutter = hwp.MMToUnit(s.page.Gutter)
			enc := pd.Encode()
			data = append(enc, data[min(len(enc), len(data)):]...)
		case r.Tag == hwp.TagCtrlHeader && s.columns > 0:
			if n, ok := hwp.ColumnCount(data); ok && n != s.columns {
				data = bytes.Clone(data)
				gap := binary.LittleEndian.Uint16(data[6:])
				if err := hwp.SetColumns(data, s.columns, gap); err != nil {
					s.log.Warn("Column count left unchanged", zap.Int("template", n), zap.Int("profile", s.columns), zap.Error(err))
					data = r.Data
				}
			}
		}
		out = hwp.AppendRecord(out, r.Tag, r.Level, data)
	}

	for i, p := range s.paras {
		text := p.text.String()
		enc := hwp.EncodeParaText(text)
		h := hwp.ParaHeader{
			Chars:          uint32(len(enc) / 2),
			ParaShapeID:    p.paraShape,
			CharShapeCount: uint16(len(p.runs)),
			LineAlignCount: 1,
		}
		if i == len(s.paras)-1 {
			h.Chars |= lastParagraph
		}
		out = hwp.AppendRecord(out, hwp.TagParaHeader, 0, h.Encode())
		if text != "" {
			out = hwp.AppendRecord(out, hwp.TagParaText, 1, enc)
		}
		out = hwp.AppendRecord(out, hwp.TagParaCharShape, 1, hwp.EncodeParaCharShape(p.runs))
		out = hwp.AppendRecord(out, hwp.TagParaLineSeg, 1, hwp.EncodeLineSegs([]hwp.LineSeg{hwp.DefaultLineSeg(p.sizePt, p.lineSpacing)}))
	}
	return out, nil
}
