// Package validate compares formatting values of the effective profile with
// attributes of template styles roles are bound to.
package validate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"exgen/common"
	"exgen/layers"
	"exgen/styles"
)

// ErrInconsistent is returned in strict mode when profile and template
// disagree.
var ErrInconsistent = errors.New("profile does not match template styles")

// Tolerance for numeric comparison.
const Tolerance = 0.05

// Compared fields.
const (
	FieldStyle       = "style"
	FieldFont        = "font"
	FieldSize        = "size"
	FieldWidth       = "charWidth"
	FieldSpacing     = "charSpacing"
	FieldLineSpacing = "lineSpacing"
	FieldIndent      = "indent"
)

// Warning describes single mismatch between profile and template style.
type Warning struct {
	Role     common.Role `json:"role"`
	Style    string      `json:"style"`
	Field    string      `json:"field"`
	Profile  string      `json:"profile"`
	Template string      `json:"template"`
}

func (w Warning) String() string {
	if w.Field == FieldStyle {
		return fmt.Sprintf("%s: style '%s' is not defined by template", w.Role, w.Style)
	}
	return fmt.Sprintf("%s: style '%s' %s is %s in template, profile has %s", w.Role, w.Style, w.Field, w.Template, w.Profile)
}

// Roles checked for consistency.
var Roles = []common.Role{common.RoleQuestion, common.RolePassage}

// Validate returns mismatches between profile formatting of question and
// passage roles and attributes of their bound template styles. Result is
// empty when everything matches.
func Validate(p *layers.Profile, m *styles.Map, d *styles.Directory) []Warning {
	var out []Warning
	for _, role := range Roles {
		name := p.StyleName(role)
		idx, ok := m.Index(name)
		if !ok {
			out = append(out, Warning{Role: role, Style: name, Field: FieldStyle})
			continue
		}
		e, ok := d.Entry(idx)
		if !ok {
			out = append(out, Warning{Role: role, Style: name, Field: FieldStyle})
			continue
		}
		out = append(out, compare(role, e, p.RoleFormat(role))...)
	}
	return out
}

func compare(role common.Role, e styles.Entry, f layers.RoleFormat) []Warning {
	var out []Warning
	add := func(field, profile, template string) {
		out = append(out, Warning{Role: role, Style: e.Name, Field: field, Profile: profile, Template: template})
	}
	a := e.Attributes

	if !SameFont(f.Font, a.Font) {
		add(FieldFont, f.Font, a.Font)
	}
	if !near(f.SizePt, a.SizePt) {
		add(FieldSize, num(f.SizePt), num(a.SizePt))
	}
	if f.WidthPercent != a.WidthPercent {
		add(FieldWidth, strconv.Itoa(f.WidthPercent), strconv.Itoa(a.WidthPercent))
	}
	if f.SpacingPercent != a.CharSpacingPercent {
		add(FieldSpacing, strconv.Itoa(f.SpacingPercent), strconv.Itoa(a.CharSpacingPercent))
	}
	switch {
	case !a.PercentSpacing:
		add(FieldLineSpacing, strconv.Itoa(f.LineSpacingPercent)+"%", "fixed")
	case f.LineSpacingPercent != a.LineSpacingPercent:
		add(FieldLineSpacing, strconv.Itoa(f.LineSpacingPercent), strconv.Itoa(a.LineSpacingPercent))
	}
	if !near(f.IndentPt, a.IndentPt) {
		add(FieldIndent, num(f.IndentPt), num(a.IndentPt))
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance+1e-9
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// font families known under several names
var fontFamilies = [][]string{
	{"중고딕", "한양중고딕", "HY중고딕"},
	{"견고딕", "한양견고딕", "HY견고딕"},
	{"신명조", "한양신명조", "HY신명조"},
}

// NormalizeFont brings font name to comparable form: surrounding spaces,
// vendor prefixes and letter case are ignored.
func NormalizeFont(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))
	for _, prefix := range []string{"한양", "HY", "hy", "Hy"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok && rest != "" {
			s = strings.TrimSpace(rest)
			break
		}
	}
	return cases.Fold().String(s)
}

// FontFamily returns all known names of the font family, name itself first.
func FontFamily(name string) []string {
	n := NormalizeFont(name)
	out := []string{strings.TrimSpace(name)}
	for _, fam := range fontFamilies {
		if NormalizeFont(fam[0]) != n {
			continue
		}
		for _, f := range fam {
			if f != out[0] {
				out = append(out, f)
			}
		}
	}
	return out
}

// SameFont reports whether two names denote the same font.
func SameFont(a, b string) bool {
	na, nb := NormalizeFont(a), NormalizeFont(b)
	if na == nb {
		return true
	}
	for _, f := range FontFamily(a) {
		if NormalizeFont(f) == nb {
			return true
		}
	}
	return false
}

// Strict turns warnings into an error.
func Strict(warnings []Warning) error {
	var errs error
	for _, w := range warnings {
		errs = multierr.Append(errs, errors.New(w.String()))
	}
	if errs == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInconsistent, errs)
}
