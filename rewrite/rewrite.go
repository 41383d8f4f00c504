// Package rewrite changes style references of paragraphs directly in the
// binary document, bypassing host surface.
//
// Only the style byte of PARA_HEADER records changes, so record layout of
// every section stays the same. Compressed sections are recompressed into
// exactly the space the original stream occupied and written back into the
// same sectors of the compound file.
package rewrite

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"exgen/cfb"
	"exgen/common"
	"exgen/hwp"
)

var (
	// ErrOutputUnreadable is returned when produced document can not be
	// opened or decoded.
	ErrOutputUnreadable = errors.New("output document is unreadable")
	// ErrStyleIDWriteFailed is returned when style references can not be
	// written back.
	ErrStyleIDWriteFailed = errors.New("unable to write style references")
)

// Rewriter patches style references of produced documents.
type Rewriter struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Rewriter {
	return &Rewriter{log: log.Named("rewrite")}
}

type sectionPatch struct {
	name    string
	size    int
	data    []byte
	changed int
}

// RewriteStyleIDs sets style of every top level paragraph to the index its
// role is mapped to. Roles are in document order, paragraphs with roles
// absent from the map are left alone. Returns number of paragraphs whose
// style actually changed. Document must have exactly as many top level
// paragraphs as there are roles, sections are patched all at once.
func (r *Rewriter) RewriteStyleIDs(path string, roleToStyle map[common.Role]int, roles []common.Role) (int, error) {
	log := r.log.With(zap.String("document", path))

	for role, idx := range roleToStyle {
		if idx < 0 || idx > 0xFF {
			return 0, fmt.Errorf("%w: style index %d of role %s does not fit paragraph header", ErrStyleIDWriteFailed, idx, role)
		}
	}

	doc, err := hwp.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}

	var (
		patches []sectionPatch
		para    int
		total   int
	)
	for _, name := range doc.Sections() {
		p, err := planSection(doc, name, &para, roleToStyle, roles)
		if err != nil {
			return 0, err
		}
		if p.changed > 0 {
			patches = append(patches, p)
			total += p.changed
		}
	}
	if para != len(roles) {
		// roles would be applied to wrong paragraphs
		return 0, fmt.Errorf("%w: document has %d paragraphs, layout has %d", ErrStyleIDWriteFailed, para, len(roles))
	}
	if total == 0 {
		log.Debug("Style references already in place")
		return 0, nil
	}

	// everything is encoded before the file is written
	out := make([]cfb.Patch, 0, len(patches))
	for _, p := range patches {
		data := p.data
		if doc.Header.Compressed() {
			if data, err = hwp.DeflateExact(p.data, p.size); err != nil {
				return 0, fmt.Errorf("%w: section %s: %w", ErrStyleIDWriteFailed, p.name, err)
			}
		}
		out = append(out, cfb.Patch{Stream: p.name, Data: data})
	}
	if err := cfb.PatchStreams(path, out...); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStyleIDWriteFailed, err)
	}
	for _, p := range patches {
		log.Debug("Section patched", zap.String("section", p.name), zap.Int("paragraphs", p.changed))
	}
	return total, nil
}

func planSection(doc *hwp.Document, name string, para *int, roleToStyle map[common.Role]int, roles []common.Role) (sectionPatch, error) {
	raw, err := doc.Container.ReadStream(name)
	if err != nil {
		return sectionPatch{}, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}
	data := raw
	if doc.Header.Compressed() {
		if data, err = hwp.Inflate(raw); err != nil {
			return sectionPatch{}, fmt.Errorf("%w: section %s: %w", ErrOutputUnreadable, name, err)
		}
	}
	recs, err := hwp.ParseRecords(data)
	if err != nil {
		return sectionPatch{}, fmt.Errorf("%w: section %s: %w", ErrOutputUnreadable, name, err)
	}

	p := sectionPatch{name: name, size: len(raw)}
	for _, rec := range recs {
		if rec.Level != 0 || rec.Tag != hwp.TagParaHeader {
			continue
		}
		i := *para
		*para++
		if i >= len(roles) {
			continue
		}
		idx, ok := roleToStyle[roles[i]]
		if !ok {
			continue
		}
		if len(rec.Data) <= hwp.StyleIDOffset {
			return sectionPatch{}, fmt.Errorf("%w: section %s: paragraph %d header is %d bytes", ErrOutputUnreadable, name, i, len(rec.Data))
		}
		off := rec.DataOffset + hwp.StyleIDOffset
		if data[off] == byte(idx) {
			continue
		}
		if p.data == nil {
			p.data = bytes.Clone(data)
		}
		p.data[off] = byte(idx)
		p.changed++
	}
	return p, nil
}

// StyleIDs returns style reference of every top level paragraph in document
// order.
func StyleIDs(path string) ([]int, error) {
	doc, err := hwp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}
	var out []int
	for _, name := range doc.Sections() {
		data, err := doc.Stream(name)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %w", ErrOutputUnreadable, name, err)
		}
		recs, err := hwp.ParseRecords(data)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %w", ErrOutputUnreadable, name, err)
		}
		for _, rec := range recs {
			if rec.Level == 0 && rec.Tag == hwp.TagParaHeader {
				h, err := hwp.DecodeParaHeader(rec.Data)
				if err != nil {
					return nil, fmt.Errorf("%w: section %s: %w", ErrOutputUnreadable, name, err)
				}
				out = append(out, int(h.StyleID))
			}
		}
	}
	return out, nil
}
