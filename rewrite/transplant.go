package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"exgen/cfb"
	"exgen/hwp"
)

// ErrStyleTransplantFailed is returned when template style table can not be
// copied into produced document.
var ErrStyleTransplantFailed = errors.New("unable to transplant template styles")

// TransplantStyles replaces STYLE records of produced document with the ones
// of the template, so that indices bound from the template name the same
// styles in the output. Style count of ID_MAPPINGS follows. Returns number of
// transplanted styles, zero when output already carries template styles.
//
// DocInfo is patched in place when the new stream fits into space of the old
// one, otherwise the compound file is rebuilt.
func (r *Rewriter) TransplantStyles(path, templatePath string) (int, error) {
	log := r.log.With(zap.String("document", path), zap.String("template", templatePath))

	tmpl, err := hwp.Open(templatePath)
	if err != nil {
		return 0, fmt.Errorf("%w: template: %w", ErrStyleTransplantFailed, err)
	}
	tinfo, err := tmpl.DocInfo()
	if err != nil {
		return 0, fmt.Errorf("%w: template: %w", ErrStyleTransplantFailed, err)
	}
	var styles []hwp.Record
	for _, rec := range tinfo.Records {
		if rec.Tag == hwp.TagStyle {
			styles = append(styles, rec)
		}
	}
	if len(styles) == 0 {
		return 0, fmt.Errorf("%w: template has no styles", ErrStyleTransplantFailed)
	}

	doc, err := hwp.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}
	raw, err := doc.Container.ReadStream(hwp.StreamDocInfo)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}
	info, err := doc.DocInfo()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutputUnreadable, err)
	}

	first, last := -1, -1
	for i, rec := range info.Records {
		if rec.Tag == hwp.TagStyle {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, fmt.Errorf("%w: document has no styles", ErrStyleTransplantFailed)
	}
	if sameRecords(info.Records[first:last+1], styles) {
		log.Debug("Template styles already in place")
		return 0, nil
	}

	// styles point to shapes by index, they must exist in the output
	for i, s := range tinfo.Styles {
		if int(s.ParaShapeID) >= len(info.ParaShapes) || int(s.CharShapeID) >= len(info.CharShapes) {
			return 0, fmt.Errorf("%w: style %d (%s) refers to para shape %d and char shape %d, document has %d and %d",
				ErrStyleTransplantFailed, i, s.Name, s.ParaShapeID, s.CharShapeID, len(info.ParaShapes), len(info.CharShapes))
		}
	}

	recs := make([]hwp.Record, 0, len(info.Records)-(last-first+1)+len(styles))
	recs = append(recs, info.Records[:first]...)
	recs = append(recs, styles...)
	recs = append(recs, info.Records[last+1:]...)
	for i, rec := range recs {
		if rec.Tag != hwp.TagIDMappings {
			continue
		}
		m := info.IDMappings
		m[hwp.IDStyle] = int32(len(styles))
		recs[i].Data = m.Encode(rec.Data)
		break
	}
	data := hwp.EncodeRecords(recs)

	if err := writeDocInfo(doc, path, raw, data); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStyleTransplantFailed, err)
	}
	log.Debug("Template styles transplanted", zap.Int("was", last-first+1), zap.Int("now", len(styles)))
	return len(styles), nil
}

func sameRecords(a, b []hwp.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tag != b[i].Tag || a[i].Level != b[i].Level || !bytes.Equal(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}

// writeDocInfo stores new DocInfo content, in place when possible.
func writeDocInfo(doc *hwp.Document, path string, raw, data []byte) error {
	stored := data
	if doc.Header.Compressed() {
		var err error
		if stored, err = hwp.DeflateExact(data, len(raw)); err != nil {
			stored = nil
		}
	}
	if len(stored) == len(raw) {
		return cfb.PatchStream(path, hwp.StreamDocInfo, stored)
	}

	var nodes []cfb.Node
	for _, e := range doc.Container.Entries() {
		if e.Storage {
			nodes = append(nodes, cfb.Node{Path: e.Path, Storage: true})
			continue
		}
		var (
			content []byte
			err     error
		)
		if e.Path == hwp.StreamDocInfo {
			content, err = doc.Encode(e.Path, data)
		} else {
			content, err = doc.Container.ReadStream(e.Path)
		}
		if err != nil {
			return err
		}
		nodes = append(nodes, cfb.Node{Path: e.Path, Data: content})
	}
	img, err := cfb.Build(nodes)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, img, fi.Mode().Perm())
}
