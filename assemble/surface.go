// Package assemble produces output documents by copying a template and
// inserting exam content through host automation surface using direct
// formatting only.
package assemble

import (
	"context"
	"errors"
)

var (
	// ErrTemplateCopyFailed is returned when template can not be copied to
	// output location.
	ErrTemplateCopyFailed = errors.New("unable to copy template")
	// ErrContentInsertionFailed is returned when content can not be written
	// into the copy.
	ErrContentInsertionFailed = errors.New("unable to insert content")
	// ErrSurfaceUnavailable is returned when surface can not open document.
	ErrSurfaceUnavailable = errors.New("host surface is unavailable")
)

// Align is paragraph alignment.
type Align int

const (
	AlignJustify Align = iota
	AlignLeft
	AlignRight
	AlignCenter
)

// CharFormat is direct character formatting.
type CharFormat struct {
	Font           string
	SizePt         float64
	WidthPercent   int
	SpacingPercent int
	Bold           bool
	Underline      bool
}

// ParaFormat is direct paragraph formatting.
type ParaFormat struct {
	LineSpacingPercent int
	// hanging indent in points
	IndentPt float64
	Align    Align
	UseGrid  bool
}

// PageFormat is page margins in millimeters.
type PageFormat struct {
	Top, Bottom, Left, Right float64
	Header, Footer, Gutter   float64
}

// Surface opens documents for editing.
type Surface interface {
	Open(ctx context.Context, path string) (Session, error)
}

// Session edits one opened document. Caret starts in an empty paragraph
// after everything session preserved from the document. Formatting applies
// to the paragraph at caret and to text inserted after the call.
//
// Session has no way to apply named styles.
type Session interface {
	SetParaFormat(f ParaFormat) error
	SetCharFormat(f CharFormat) error
	// InsertText types text at caret, text must not contain line breaks.
	InsertText(text string) error
	// BreakParagraph ends current paragraph and starts a new one with the
	// same formatting.
	BreakParagraph() error
	// Paragraphs returns number of top level paragraphs in the document
	// including the one at caret.
	Paragraphs() int
	Save() error
	Close() error
}

// LayoutSession is implemented by sessions which can change page setup.
type LayoutSession interface {
	Session
	SetPage(f PageFormat) error
	SetColumns(count int) error
}
