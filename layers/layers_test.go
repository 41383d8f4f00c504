package layers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"exgen/common"
)

func mustParse(t *testing.T, doc string) Value {
	t.Helper()
	v, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", doc, err)
	}
	return v
}

func lookupNumber(t *testing.T, v Value, path string) float64 {
	t.Helper()
	f, ok := v.Lookup(path)
	if !ok {
		t.Fatalf("Lookup(%q) not found in %s", path, v)
	}
	n, ok := f.AsNumber()
	if !ok {
		t.Fatalf("Lookup(%q) = %s, not a number", path, f)
	}
	return n
}

func TestParseKeepsOrder(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"json", `{"b": 1, "a": {"y": true, "x": "s"}, "c": [1, null]}`, `{"b":1,"a":{"y":true,"x":"s"},"c":[1,null]}`},
		{"yaml", "b: 1\na:\n  y: true\n  x: s\nc: [1, ~]\n", `{"b":1,"a":{"y":true,"x":"s"},"c":[1,null]}`},
		{"korean", `{"format": {"questionFont": "중고딕", "fontSize": 9.5}}`, `{"format":{"questionFont":"중고딕","fontSize":9.5}}`},
		{"empty", "   \n", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.doc).String()
			if got != tt.want {
				t.Errorf("Parse() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := Parse([]byte(`{"a": [1, 2`)); err == nil {
		t.Error("Parse(broken) expected error")
	}
}

func TestMergePrecedence(t *testing.T) {
	base := mustParse(t, `{"format": {"fontSize": 9.5, "columns": 2}, "list": [1, 2], "keep": "base"}`)
	preset := mustParse(t, `{"format": {"fontSize": 10}, "list": [3]}`)
	user := mustParse(t, `{"format": {"columns": 1}, "extra": {"x": 1}}`)
	baseCopy, presetCopy := base.Clone(), preset.Clone()

	got := MergeAll(base, preset, user)
	want := mustParse(t, `{"format": {"fontSize": 10, "columns": 1}, "list": [3], "keep": "base", "extra": {"x": 1}}`)
	if !got.Equal(want) {
		t.Errorf("MergeAll() = %s, want %s", got, want)
	}
	if got.String() != want.String() {
		t.Errorf("MergeAll() key order = %s, want %s", got, want)
	}
	if !base.Equal(baseCopy) || !preset.Equal(presetCopy) {
		t.Error("MergeAll() modified its inputs")
	}

	// result must not share state with inputs
	changed := got.Set("format.fontSize", Number(20))
	if n := lookupNumber(t, got, "format.fontSize"); n != 10 {
		t.Errorf("Set() leaked into source value: fontSize = %v", n)
	}
	if n := lookupNumber(t, changed, "format.fontSize"); n != 20 {
		t.Errorf("Set() fontSize = %v, want 20", n)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := mustParse(t, `{"format": {"fontSize": 9.5, "fonts": ["a", "b"]}, "page": {"top": 15}}`)
	b := mustParse(t, `{"format": {"fontSize": 10}, "style": {"enabled": false}}`)

	if got := Merge(a, a); !got.Equal(a) {
		t.Errorf("Merge(a, a) = %s, want %s", got, a)
	}
	ab := Merge(a, b)
	if got := Merge(ab, b); !got.Equal(ab) {
		t.Errorf("Merge(Merge(a, b), b) = %s, want %s", got, ab)
	}
	if got := Merge(a, EmptyMap()); !got.Equal(a) {
		t.Errorf("Merge(a, {}) = %s, want %s", got, a)
	}
}

func TestLookupLiteralDottedKey(t *testing.T) {
	v := mustParse(t, `{"a.b": {"c": 1}, "a": {"b": {"c": 2, "d": 3}}, "format.columns": 2}`)
	tests := []struct {
		path string
		want float64
	}{
		{"a.b.c", 1},
		{"a.b.d", 3},
		{"format.columns", 2},
	}
	for _, tt := range tests {
		if got := lookupNumber(t, v, tt.path); got != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if _, ok := v.Lookup("a.x"); ok {
		t.Error("Lookup(a.x) found missing key")
	}
	if _, ok := v.Lookup("format.columns.deeper"); ok {
		t.Error("Lookup() descended into a scalar")
	}
}

func TestExpandDotted(t *testing.T) {
	v := mustParse(t, `{"format": {"fontSize": 9.5}, "format.columns": 2, "weird.": 1, "seq": [{"x.y": 1}]}`)
	got := ExpandDotted(v)
	want := mustParse(t, `{"format": {"fontSize": 9.5, "columns": 2}, "weird.": 1, "seq": [{"x": {"y": 1}}]}`)
	if !got.Equal(want) {
		t.Errorf("ExpandDotted() = %s, want %s", got, want)
	}
}

// preset {"format":{"fontSize":10.0},"style":{"templatePath":"T.bin"}} over
// base {"format":{"fontSize":9.5},"format.columns":2} with empty user layer
func TestScenarioDottedBase(t *testing.T) {
	base := mustParse(t, `{"format": {"fontSize": 9.5}, "format.columns": 2}`)
	preset := mustParse(t, `{"format": {"fontSize": 10.0}, "style": {"templatePath": "T.bin"}}`)

	raw := MergeAll(base, preset, EmptyMap())
	if n := lookupNumber(t, raw, "format.fontSize"); n != 10 {
		t.Errorf("format.fontSize = %v, want 10", n)
	}
	if n := lookupNumber(t, raw, "format.columns"); n != 2 {
		t.Errorf("format.columns = %v, want 2", n)
	}

	full := NewLayer(LayerBase, Merge(DefaultBase().Root, base))
	p, err := Resolve(full, NewPreset("exam.json", preset), NewLayer(LayerUser, EmptyMap()))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Format.FontSize != 10 || p.Format.Columns != 2 {
		t.Errorf("profile format = %+v, want fontSize 10 and columns 2", p.Format)
	}
	if p.Style.TemplatePath != "T.bin" {
		t.Errorf("templatePath = %q, want T.bin", p.Style.TemplatePath)
	}
	if p.PresetFile() != "exam.json" {
		t.Errorf("PresetFile() = %q", p.PresetFile())
	}
}

func TestResolveDefaults(t *testing.T) {
	p, err := Resolve(DefaultBase(), nil, NewLayer(LayerUser, EmptyMap()))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := FormatSettings{QuestionFont: "중고딕", PassageFont: "휴먼명조", FontSize: 9.5, CharWidth: 95, CharSpacing: -5, Columns: 2}
	if diff := cmp.Diff(want, p.Format); diff != "" {
		t.Errorf("format mismatch (-want +got):\n%s", diff)
	}
	if p.Paragraph.LineSpacing != 140 || p.Paragraph.IndentValue != 13.8 {
		t.Errorf("paragraph = %+v", p.Paragraph)
	}
	wantPage := PageSettings{Top: 15, Bottom: 10, Left: 15, Right: 15, Footer: 5}
	if diff := cmp.Diff(wantPage, p.Page); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if p.Preset != nil || len(p.Drift) != 0 {
		t.Errorf("no preset resolution produced preset %v, drift %v", p.Preset, p.Drift)
	}

	// two layer merge without preset is plain merge
	user := NewLayer(LayerUser, mustParse(t, `{"format": {"fontSize": 11}}`))
	p2, err := Resolve(DefaultBase(), nil, user)
	if err != nil {
		t.Fatal(err)
	}
	if !p2.Root.Equal(Merge(DefaultBase().Root, user.Root)) {
		t.Error("Resolve() without preset differs from two layer merge")
	}
}

func TestResolveIncomplete(t *testing.T) {
	base := NewLayer(LayerBase, DefaultBase().Root.Without("page"))
	_, err := Resolve(base, nil, NewLayer(LayerUser, EmptyMap()))
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("Resolve() error = %v, want ErrProfileIncomplete", err)
	}
	if n := len(multierr.Errors(err)); n != 7 {
		t.Errorf("Resolve() reported %d problems, want 7: %v", n, err)
	}

	user := NewLayer(LayerUser, mustParse(t, `{"format": {"fontSize": "big", "columns": 1.5}}`))
	_, err = Resolve(DefaultBase(), nil, user)
	if !errors.Is(err, ErrProfileInvalid) || errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("Resolve() error = %v, want ErrProfileInvalid only", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("Resolve() reported %d problems, want 2: %v", n, err)
	}
}

func TestDrift(t *testing.T) {
	preset := NewPreset("p.json", mustParse(t, `{"format": {"fontSize": 10}, "style": {"questionStyle": "문제"}}`))
	user := NewLayer(LayerUser, mustParse(t, `{
		"format": {"fontSize": 11},
		"paragraph": {"lineSpacing": 160},
		"style": {"enabled": false, "moduleDllPath": "x.dll", "questionStyle": "문제"},
		"output": {"directory": "out"}
	}`))

	p, err := Resolve(DefaultBase(), preset, user)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Format.FontSize != 11 {
		t.Errorf("user layer must win: fontSize = %v", p.Format.FontSize)
	}
	var paths []string
	for _, w := range p.Drift {
		paths = append(paths, w.Path)
	}
	if diff := cmp.Diff([]string{"format.fontSize", "paragraph.lineSpacing"}, paths); diff != "" {
		t.Errorf("drift mismatch (-want +got):\n%s", diff)
	}
	if !p.Drift[0].InPreset || p.Drift[1].InPreset {
		t.Errorf("drift InPreset flags: %+v", p.Drift)
	}

	p, err = Resolve(DefaultBase(), nil, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Drift) != 0 {
		t.Errorf("drift reported without preset: %v", p.Drift)
	}
}

func TestStyleNames(t *testing.T) {
	user := NewLayer(LayerUser, mustParse(t, `{"style": {"explanationStyle": "해설"}}`))
	p, err := Resolve(DefaultBase(), nil, user)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		role common.Role
		want string
	}{
		{common.RoleQuestion, "문제"},
		{common.RolePassage, "지문"},
		{common.RoleChoice, "지문"},
		{common.RoleSubItems, "지문"},
		{common.RoleExplanation, "해설"},
		{common.RoleNone, ""},
	}
	for _, tt := range tests {
		if got := p.StyleName(tt.role); got != tt.want {
			t.Errorf("StyleName(%s) = %q, want %q", tt.role, got, tt.want)
		}
	}
	if f := p.RoleFormat(common.RoleQuestion); f.Font != "중고딕" || f.IndentPt != 13.8 {
		t.Errorf("RoleFormat(question) = %+v", f)
	}
	if f := p.RoleFormat(common.RoleChoice); f.Font != "휴먼명조" {
		t.Errorf("RoleFormat(choice) font = %q", f.Font)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestListPresets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "preset10.json"), `{"presetName": "Ten", "format": {"fontSize": 10}}`)
	writeFile(t, filepath.Join(dir, "preset2.json"), `{"preset_name": "Two", "preset_description": "legacy keys", "templatePath": "two.hwp"}`)
	writeFile(t, filepath.Join(dir, "a.yaml"), "presetDescription: yaml preset\nstyle:\n  templatePath: a.hwp\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a preset")

	presets, err := ListPresets(dir)
	if err != nil {
		t.Fatalf("ListPresets() error = %v", err)
	}
	type row struct{ File, Name, Description, TemplatePath string }
	var got []row
	for _, p := range presets {
		got = append(got, row{p.File, p.Name, p.Description, p.TemplatePath})
	}
	want := []row{
		{"a.yaml", "a", "yaml preset", "a.hwp"},
		{"preset2.json", "Two", "legacy keys", "two.hwp"},
		{"preset10.json", "Ten", "", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListPresets() mismatch (-want +got):\n%s", diff)
	}
	// metadata and alias keys do not leak into the layer
	if _, ok := presets[1].Layer.Root.Field("templatePath"); ok {
		t.Error("top level templatePath kept in preset layer")
	}
	if _, ok := presets[1].Layer.Root.Field("preset_name"); ok {
		t.Error("preset name kept in preset layer")
	}

	if got, err := ListPresets(filepath.Join(dir, "missing")); err != nil || got != nil {
		t.Errorf("ListPresets(missing) = %v, %v", got, err)
	}
}

func TestResolver(t *testing.T) {
	root := t.TempDir()
	templates := filepath.Join(root, "templates")
	store := Store{
		BasePath:     filepath.Join(root, "default_config.json"),
		UserPath:     filepath.Join(root, "user_config.json"),
		PresetsDir:   filepath.Join(root, "presets"),
		TemplatesDir: templates,
		Root:         root,
	}
	writeFile(t, filepath.Join(templates, "moved.hwp"), "x")
	writeFile(t, filepath.Join(store.PresetsDir, "rel.json"), `{"style": {"templatePath": "templates/moved.hwp"}}`)
	writeFile(t, filepath.Join(store.PresetsDir, "stale.json"), `{"style": {"templatePath": "C:\\Users\\someone\\exgen\\templates\\moved.hwp"}}`)

	r := NewResolver(store, zaptest.NewLogger(t))
	if r.LastPreset() != "" {
		t.Errorf("LastPreset() = %q before any resolution", r.LastPreset())
	}

	tests := []struct {
		preset string
		want   string
	}{
		{"rel.json", filepath.Join(templates, "moved.hwp")},
		{"stale", filepath.Join(templates, "moved.hwp")},
		{"", ""},
	}
	for _, tt := range tests {
		p, err := r.Resolve(tt.preset)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.preset, err)
		}
		if p.Style.TemplatePath != tt.want {
			t.Errorf("Resolve(%q) templatePath = %q, want %q", tt.preset, p.Style.TemplatePath, tt.want)
		}
		if tt.preset != "" && r.LastPreset() != p.PresetFile() {
			t.Errorf("LastPreset() = %q, want %q", r.LastPreset(), p.PresetFile())
		}
	}
	if r.LastPreset() != "" {
		t.Errorf("LastPreset() = %q after resolution without preset", r.LastPreset())
	}

	if _, err := r.Resolve("missing.json"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrPresetNotFound", err)
	}
	if _, err := r.Resolve("../escape.json"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("Resolve(../escape) error = %v, want ErrPresetNotFound", err)
	}
}

func TestUpdateUser(t *testing.T) {
	root := t.TempDir()
	store := Store{UserPath: filepath.Join(root, "conf", "user_config.json")}

	if err := store.UpdateUser(mustParse(t, `{"format.fontSize": 10}`)); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if err := store.UpdateUser(mustParse(t, `{"format": {"columns": 1}}`)); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	user, err := store.User()
	if err != nil {
		t.Fatal(err)
	}
	want := mustParse(t, `{"format": {"fontSize": 10, "columns": 1}}`)
	if !user.Root.Equal(want) {
		t.Errorf("user layer = %s, want %s", user.Root, want)
	}
	if user.Source != store.UserPath {
		t.Errorf("Source = %q", user.Source)
	}
}
