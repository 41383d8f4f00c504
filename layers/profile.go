package layers

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"exgen/common"
)

var (
	// ErrProfileIncomplete is returned when merged layers miss a key profile
	// needs.
	ErrProfileIncomplete = errors.New("profile is incomplete")
	// ErrProfileInvalid is returned when value has wrong type or is out of
	// range.
	ErrProfileInvalid = errors.New("profile value is invalid")
)

// Key paths consulted by the system.
const (
	KeyQuestionFont  = "format.questionFont"
	KeyPassageFont   = "format.passageFont"
	KeyFontSize      = "format.fontSize"
	KeyCharWidth     = "format.charWidth"
	KeyCharSpacing   = "format.charSpacing"
	KeyColumns       = "format.columns"
	KeyLineSpacing   = "paragraph.lineSpacing"
	KeyIndentValue   = "paragraph.indentValue"
	KeyUseGrid       = "paragraph.useGrid"
	KeyStyleEnabled  = "style.enabled"
	KeyTemplatePath  = "style.templatePath"
	KeyQuestionStyle = "style.questionStyle"
	KeyPassageStyle  = "style.passageStyle"
	KeyChoiceStyle   = "style.choiceStyle"
	KeySubItemsStyle = "style.subItemsStyle"
	KeyExplainStyle  = "style.explanationStyle"
	KeyModuleDllPath = "style.moduleDllPath"
	KeyOutputDir     = "output.directory"
)

type FormatSettings struct {
	QuestionFont string  `json:"questionFont"`
	PassageFont  string  `json:"passageFont"`
	FontSize     float64 `json:"fontSize"`
	CharWidth    int     `json:"charWidth"`
	CharSpacing  int     `json:"charSpacing"`
	Columns      int     `json:"columns"`
}

type ParagraphSettings struct {
	LineSpacing int `json:"lineSpacing"`
	// hanging indent in points
	IndentValue float64 `json:"indentValue"`
	UseGrid     bool    `json:"useGrid"`
}

// PageSettings are page margins in millimeters.
type PageSettings struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Header float64 `json:"header"`
	Footer float64 `json:"footer"`
	Gutter float64 `json:"gutter"`
}

type StyleSettings struct {
	Enabled          bool   `json:"enabled"`
	TemplatePath     string `json:"templatePath"`
	QuestionStyle    string `json:"questionStyle"`
	PassageStyle     string `json:"passageStyle"`
	ChoiceStyle      string `json:"choiceStyle"`
	SubItemsStyle    string `json:"subItemsStyle"`
	ExplanationStyle string `json:"explanationStyle"`
	ModuleDllPath    string `json:"moduleDllPath"`
}

type OutputSettings struct {
	Directory string `json:"directory"`
}

// DriftWarning reports user override of a key preset is expected to own.
type DriftWarning struct {
	Path   string
	User   Value
	Preset Value
	// false when preset does not define the key
	InPreset bool
}

func (w DriftWarning) String() string {
	if !w.InPreset {
		return fmt.Sprintf("user configuration sets %s=%s which preset does not define", w.Path, w.User)
	}
	return fmt.Sprintf("user configuration overrides preset %s: %s instead of %s", w.Path, w.User, w.Preset)
}

// Profile is effective configuration of a single request.
type Profile struct {
	Root Value
	// nil when no preset was used
	Preset *Preset
	Drift  []DriftWarning

	Format    FormatSettings    `json:"format"`
	Paragraph ParagraphSettings `json:"paragraph"`
	Page      PageSettings      `json:"page"`
	Style     StyleSettings     `json:"style"`
	Output    OutputSettings    `json:"output"`
}

// RoleFormat is direct formatting applied to paragraphs of a role.
type RoleFormat struct {
	Font               string
	SizePt             float64
	WidthPercent       int
	SpacingPercent     int
	LineSpacingPercent int
	IndentPt           float64
	UseGrid            bool
}

// RoleFormat returns formatting of role, question paragraphs use question
// font and everything else formats like passage.
func (p *Profile) RoleFormat(role common.Role) RoleFormat {
	font := p.Format.PassageFont
	if role == common.RoleQuestion {
		font = p.Format.QuestionFont
	}
	return RoleFormat{
		Font:               font,
		SizePt:             p.Format.FontSize,
		WidthPercent:       p.Format.CharWidth,
		SpacingPercent:     p.Format.CharSpacing,
		LineSpacingPercent: p.Paragraph.LineSpacing,
		IndentPt:           p.Paragraph.IndentValue,
		UseGrid:            p.Paragraph.UseGrid,
	}
}

// StyleName returns name of the template style role is bound to. Roles
// without own style name fall back to passage style.
func (p *Profile) StyleName(role common.Role) string {
	var name string
	switch role {
	case common.RoleQuestion:
		return p.Style.QuestionStyle
	case common.RolePassage:
		return p.Style.PassageStyle
	case common.RoleChoice:
		name = p.Style.ChoiceStyle
	case common.RoleSubItems:
		name = p.Style.SubItemsStyle
	case common.RoleExplanation:
		name = p.Style.ExplanationStyle
	default:
		return ""
	}
	if strings.TrimSpace(name) == "" {
		return p.Style.PassageStyle
	}
	return name
}

// PresetFile returns identity of the preset which produced profile.
func (p *Profile) PresetFile() string {
	if p.Preset == nil {
		return ""
	}
	return p.Preset.File
}

// MarshalJSON dumps merged configuration.
func (p *Profile) MarshalJSON() ([]byte, error) {
	return p.Root.MarshalJSON()
}

// Resolve merges base, optional preset and user layers in this order, user
// layer always wins. Inputs are not modified.
func Resolve(base Layer, preset *Preset, user Layer) (*Profile, error) {
	vals := []Value{base.Root}
	if preset != nil {
		vals = append(vals, preset.Layer.Root)
	}
	vals = append(vals, user.Root)

	p := &Profile{Root: MergeAll(vals...), Preset: preset}
	if err := p.populate(); err != nil {
		return nil, err
	}
	if preset != nil {
		p.Drift = detectDrift(preset.Layer.Root, user.Root)
	}
	return p, nil
}

// keys user may keep while preset is active
var machineKeys = []string{KeyStyleEnabled, KeyModuleDllPath}

var presetSections = []string{"format", "paragraph", "style"}

func detectDrift(preset, user Value) []DriftWarning {
	var out []DriftWarning
	for _, sec := range presetSections {
		v, ok := user.Field(sec)
		if !ok {
			continue
		}
		walkLeaves(sec, v, func(path string, leaf Value) {
			if slices.Contains(machineKeys, path) {
				return
			}
			w := DriftWarning{Path: path, User: leaf}
			w.Preset, w.InPreset = preset.Lookup(path)
			if w.InPreset && w.Preset.Equal(leaf) {
				return
			}
			out = append(out, w)
		})
	}
	return out
}

func walkLeaves(path string, v Value, fn func(string, Value)) {
	if !v.IsMap() || v.Len() == 0 {
		fn(path, v)
		return
	}
	for _, k := range v.Keys() {
		f, _ := v.Field(k)
		walkLeaves(path+"."+k, f, fn)
	}
}

type field struct {
	path     string
	optional bool
	assign   func(p *Profile, v Value) error
}

var fields = []field{
	{path: KeyQuestionFont, assign: text(func(p *Profile) *string { return &p.Format.QuestionFont }, true)},
	{path: KeyPassageFont, assign: text(func(p *Profile) *string { return &p.Format.PassageFont }, true)},
	{path: KeyFontSize, assign: number(func(p *Profile) *float64 { return &p.Format.FontSize }, 1, 4096)},
	{path: KeyCharWidth, assign: integer(func(p *Profile) *int { return &p.Format.CharWidth }, 50, 200)},
	{path: KeyCharSpacing, assign: integer(func(p *Profile) *int { return &p.Format.CharSpacing }, -50, 50)},
	{path: KeyColumns, assign: integer(func(p *Profile) *int { return &p.Format.Columns }, 1, 255)},
	{path: KeyLineSpacing, assign: integer(func(p *Profile) *int { return &p.Paragraph.LineSpacing }, 10, 500)},
	{path: KeyIndentValue, assign: number(func(p *Profile) *float64 { return &p.Paragraph.IndentValue }, -1000, 1000)},
	{path: KeyUseGrid, optional: true, assign: boolean(func(p *Profile) *bool { return &p.Paragraph.UseGrid })},
	{path: "page.top", assign: number(func(p *Profile) *float64 { return &p.Page.Top }, 0, 1000)},
	{path: "page.bottom", assign: number(func(p *Profile) *float64 { return &p.Page.Bottom }, 0, 1000)},
	{path: "page.left", assign: number(func(p *Profile) *float64 { return &p.Page.Left }, 0, 1000)},
	{path: "page.right", assign: number(func(p *Profile) *float64 { return &p.Page.Right }, 0, 1000)},
	{path: "page.header", assign: number(func(p *Profile) *float64 { return &p.Page.Header }, 0, 1000)},
	{path: "page.footer", assign: number(func(p *Profile) *float64 { return &p.Page.Footer }, 0, 1000)},
	{path: "page.gutter", assign: number(func(p *Profile) *float64 { return &p.Page.Gutter }, 0, 1000)},
	{path: KeyStyleEnabled, assign: boolean(func(p *Profile) *bool { return &p.Style.Enabled })},
	{path: KeyTemplatePath, optional: true, assign: text(func(p *Profile) *string { return &p.Style.TemplatePath }, false)},
	{path: KeyQuestionStyle, assign: text(func(p *Profile) *string { return &p.Style.QuestionStyle }, true)},
	{path: KeyPassageStyle, assign: text(func(p *Profile) *string { return &p.Style.PassageStyle }, true)},
	{path: KeyChoiceStyle, optional: true, assign: text(func(p *Profile) *string { return &p.Style.ChoiceStyle }, false)},
	{path: KeySubItemsStyle, optional: true, assign: text(func(p *Profile) *string { return &p.Style.SubItemsStyle }, false)},
	{path: KeyExplainStyle, optional: true, assign: text(func(p *Profile) *string { return &p.Style.ExplanationStyle }, false)},
	{path: KeyModuleDllPath, optional: true, assign: text(func(p *Profile) *string { return &p.Style.ModuleDllPath }, false)},
	{path: KeyOutputDir, optional: true, assign: text(func(p *Profile) *string { return &p.Output.Directory }, false)},
}

// RequiredKeys lists key paths which must be present in merged layers.
func RequiredKeys() []string {
	var out []string
	for _, f := range fields {
		if !f.optional {
			out = append(out, f.path)
		}
	}
	return out
}

func (p *Profile) populate() error {
	var errs error
	for _, f := range fields {
		v, ok := p.Root.Lookup(f.path)
		if !ok || v.IsNull() {
			if !f.optional {
				errs = multierr.Append(errs, fmt.Errorf("%w: missing %s", ErrProfileIncomplete, f.path))
			}
			continue
		}
		if err := f.assign(p, v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", ErrProfileInvalid, f.path, err))
		}
	}
	return errs
}

func text(dst func(*Profile) *string, nonEmpty bool) func(*Profile, Value) error {
	return func(p *Profile, v Value) error {
		s, ok := v.AsString()
		if !ok {
			return fmt.Errorf("expected string, got %s", v.Kind())
		}
		s = strings.TrimSpace(s)
		if nonEmpty && s == "" {
			return errors.New("must not be empty")
		}
		*dst(p) = s
		return nil
	}
}

func number(dst func(*Profile) *float64, lo, hi float64) func(*Profile, Value) error {
	return func(p *Profile, v Value) error {
		n, ok := v.AsNumber()
		if !ok {
			return fmt.Errorf("expected number, got %s", v.Kind())
		}
		if n < lo || n > hi || math.IsNaN(n) {
			return fmt.Errorf("%v is out of range [%v, %v]", n, lo, hi)
		}
		*dst(p) = n
		return nil
	}
}

func integer(dst func(*Profile) *int, lo, hi int) func(*Profile, Value) error {
	return func(p *Profile, v Value) error {
		n, ok := v.AsNumber()
		if !ok {
			return fmt.Errorf("expected number, got %s", v.Kind())
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("%v is not an integer", n)
		}
		if n < float64(lo) || n > float64(hi) {
			return fmt.Errorf("%v is out of range [%d, %d]", n, lo, hi)
		}
		*dst(p) = int(n)
		return nil
	}
}

func boolean(dst func(*Profile) *bool) func(*Profile, Value) error {
	return func(p *Profile, v Value) error {
		b, ok := v.AsBool()
		if !ok {
			return fmt.Errorf("expected bool, got %s", v.Kind())
		}
		*dst(p) = b
		return nil
	}
}
