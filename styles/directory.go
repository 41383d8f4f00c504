// Package styles reads named style table of a template document and maps
// style names to their numeric indices.
package styles

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"exgen/hwp"
)

var (
	// ErrTemplateUnreadable is returned when template can not be opened or
	// its document information can not be decoded.
	ErrTemplateUnreadable = errors.New("template is unreadable")
	// ErrStyleTableCorrupt is returned for damaged or inconsistent style
	// records.
	ErrStyleTableCorrupt = errors.New("style table is corrupt")
	// ErrRequiredStyleMissing is returned when style bound to a role is not
	// defined by template.
	ErrRequiredStyleMissing = errors.New("required style is missing")
)

// Error describes failure to read style directory of a template.
type Error struct {
	Path string
	// one of package sentinel errors
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Attributes are formatting values of a style as defined by its character
// and paragraph shapes.
type Attributes struct {
	Font               string  `json:"font"`
	SizePt             float64 `json:"sizePt"`
	WidthPercent       int     `json:"widthPercent"`
	CharSpacingPercent int     `json:"charSpacingPercent"`
	LineSpacingPercent int     `json:"lineSpacingPercent"`
	// hanging indent, same sign convention as profile indentValue
	IndentPt float64 `json:"indentPt"`
	// false when line spacing is not given in percent
	PercentSpacing bool `json:"percentSpacing"`
}

// Entry is one named style, index is its position in the style table.
type Entry struct {
	Name        string     `json:"name"`
	EnglishName string     `json:"englishName,omitempty"`
	Index       int        `json:"index"`
	ParaShapeID int        `json:"paraShapeId"`
	CharShapeID int        `json:"charShapeId"`
	Attributes  Attributes `json:"attributes"`
}

// Directory is style table of a template.
type Directory struct {
	Source  string  `json:"source"`
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// ReadStyles opens template and reads its style table.
func ReadStyles(path string) (*Directory, error) {
	doc, err := hwp.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrTemplateUnreadable, Err: err}
	}
	return ReadStylesFrom(path, doc)
}

// ReadStylesFrom reads style table of already opened document.
func ReadStylesFrom(path string, doc *hwp.Document) (*Directory, error) {
	data, err := doc.Stream(hwp.StreamDocInfo)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrTemplateUnreadable, Err: err}
	}
	di, err := hwp.ParseDocInfo(data)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrStyleTableCorrupt, Err: err}
	}

	d := &Directory{Source: path, Version: doc.Header.VersionString(), Entries: make([]Entry, 0, len(di.Styles))}
	seen := make(map[string]int, len(di.Styles))
	var errs error
	for i, st := range di.Styles {
		if st.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("style %d has no name", i))
			continue
		}
		key := normalize(st.Name)
		if prev, ok := seen[key]; ok {
			errs = multierr.Append(errs, fmt.Errorf("style %d duplicates name '%s' of style %d", i, st.Name, prev))
			continue
		}
		seen[key] = i

		attrs, err := attributes(di, st)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("style %d '%s': %w", i, st.Name, err))
			continue
		}
		d.Entries = append(d.Entries, Entry{
			Name:        st.Name,
			EnglishName: st.EnglishName,
			Index:       i,
			ParaShapeID: int(st.ParaShapeID),
			CharShapeID: int(st.CharShapeID),
			Attributes:  attrs,
		})
	}
	if errs != nil {
		return nil, &Error{Path: path, Kind: ErrStyleTableCorrupt, Err: errs}
	}
	return d, nil
}

func attributes(di *hwp.DocInfo, st hwp.Style) (Attributes, error) {
	if int(st.CharShapeID) >= len(di.CharShapes) {
		return Attributes{}, fmt.Errorf("character shape %d out of range [0, %d)", st.CharShapeID, len(di.CharShapes))
	}
	if int(st.ParaShapeID) >= len(di.ParaShapes) {
		return Attributes{}, fmt.Errorf("paragraph shape %d out of range [0, %d)", st.ParaShapeID, len(di.ParaShapes))
	}
	cs, ps := di.CharShapes[st.CharShapeID], di.ParaShapes[st.ParaShapeID]

	face, ok := di.Face(0, cs.FaceIDs[0])
	if !ok {
		return Attributes{}, fmt.Errorf("font %d is not defined", cs.FaceIDs[0])
	}
	a := Attributes{
		Font:               face,
		SizePt:             cs.SizePt(),
		WidthPercent:       int(cs.Ratios[0]),
		CharSpacingPercent: int(cs.Spacings[0]),
		IndentPt:           float64(-ps.Indent) / 100,
		PercentSpacing:     ps.LineSpacingKind() == hwp.LineSpacingPercent,
	}
	if a.PercentSpacing {
		a.LineSpacingPercent = int(ps.LineSpacing)
	}
	return a, nil
}

// Len returns number of named styles.
func (d *Directory) Len() int {
	return len(d.Entries)
}

// Lookup finds entry by name using the same rules as Map.
func (d *Directory) Lookup(name string) (Entry, bool) {
	idx, ok := d.Map().Index(name)
	if !ok {
		return Entry{}, false
	}
	return d.Entry(idx)
}

// Entry returns style with given index.
func (d *Directory) Entry(index int) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Index == index {
			return e, true
		}
	}
	return Entry{}, false
}

// Require checks that all names resolve to styles of the template. Empty
// names are ignored.
func (d *Directory) Require(names ...string) error {
	m := d.Map()
	var errs error
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := m.Index(n); !ok {
			errs = multierr.Append(errs, fmt.Errorf("style '%s' is not defined", n))
		}
	}
	if errs != nil {
		return &Error{Path: d.Source, Kind: ErrRequiredStyleMissing, Err: errs}
	}
	return nil
}
