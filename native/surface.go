// Package native implements document editing surface which writes HWP 5
// documents directly without external word processor.
//
// Session keeps the first paragraph of the template (it carries section and
// column definitions), drops the rest of the body and appends new paragraphs.
// Every new paragraph references style 0, formatting is expressed with
// character and paragraph shapes added to document information.
package native

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"exgen/assemble"
	"exgen/hwp"
)

// ErrUnsupportedDocument is returned for documents session can not edit.
var ErrUnsupportedDocument = errors.New("unsupported document")

// Surface opens documents for editing in process.
type Surface struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Surface {
	return &Surface{log: log.Named("native")}
}

func (s *Surface) Open(ctx context.Context, path string) (assemble.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := hwp.Open(path)
	if err != nil {
		return nil, err
	}
	sess, err := newSession(doc, path, s.log)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func newSession(doc *hwp.Document, path string, log *zap.Logger) (*session, error) {
	sections := doc.Sections()
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: document has no sections", ErrUnsupportedDocument)
	}
	data, err := doc.Stream(sections[0])
	if err != nil {
		return nil, err
	}
	recs, err := hwp.ParseRecords(data)
	if err != nil {
		return nil, err
	}
	paras, err := hwp.Paragraphs(recs)
	if err != nil {
		return nil, err
	}
	if len(paras) == 0 {
		return nil, fmt.Errorf("%w: first section is empty", ErrUnsupportedDocument)
	}

	info, err := doc.DocInfo()
	if err != nil {
		return nil, err
	}
	if len(info.FaceNames) != info.IDMappings.FaceCount() ||
		len(info.CharShapes) != int(info.IDMappings[hwp.IDCharShape]) ||
		len(info.ParaShapes) != int(info.IDMappings[hwp.IDParaShape]) {
		return nil, fmt.Errorf("%w: document information does not match its ID mappings", ErrUnsupportedDocument)
	}

	s := &session{
		log:      log.With(zap.String("document", path)),
		path:     path,
		doc:      doc,
		info:     info,
		sections: sections,
		first:    slices.Clone(paras[0].Records),
		shapes:   newRegistry(info),
	}
	s.paras = []*paragraph{s.newParagraph()}
	s.log.Debug("Document opened",
		zap.String("version", doc.Header.VersionString()),
		zap.Bool("compressed", doc.Header.Compressed()),
		zap.Int("sections", len(sections)),
		zap.Int("dropped paragraphs", len(paras)-1))
	return s, nil
}
