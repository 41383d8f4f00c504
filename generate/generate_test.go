package generate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"exgen/assemble"
	"exgen/common"
	"exgen/exam"
	"exgen/journal"
	"exgen/layers"
	"exgen/native"
	"exgen/rewrite"
	"exgen/styles"
	"exgen/validate"
)

type fixture struct {
	root  string
	store layers.Store
	tmpl  string
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

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		root: root,
		tmpl: filepath.Join(root, "templates", "default.hwp"),
		store: layers.Store{
			BasePath:     filepath.Join(root, "config", "base.json"),
			UserPath:     filepath.Join(root, "config", "user.json"),
			PresetsDir:   filepath.Join(root, "config", "presets"),
			TemplatesDir: filepath.Join(root, "templates"),
			Root:         root,
		},
	}
	if err := WriteDefaultTemplate(f.tmpl); err != nil {
		t.Fatalf("WriteDefaultTemplate() error = %v", err)
	}
	writeFile(t, filepath.Join(f.store.PresetsDir, "exam.json"),
		`{"presetName": "Exam", "style": {"templatePath": "templates/default.hwp"}}`)
	writeFile(t, filepath.Join(f.store.PresetsDir, "broken.json"),
		`{"presetName": "Broken", "style": {"templatePath": "templates/default.hwp", "questionStyle": "없는스타일"}}`)
	return f
}

func (f *fixture) generator(t *testing.T, surface assemble.Surface, opts Options, options ...Option) *Generator {
	t.Helper()
	log := zaptest.NewLogger(t)
	if surface == nil {
		surface = native.New(log)
	}
	if opts.DefaultTemplate == "" {
		opts.DefaultTemplate = f.tmpl
	}
	return New(layers.NewResolver(f.store, log), surface, opts, log, options...)
}

func sampleDoc() *exam.Document {
	answer, explanation := "③", "보기 ③은 본문과 다르다."
	return &exam.Document{
		FileType: exam.FileTypeWithAnswers,
		Subject:  "국어",
		Questions: []exam.Question{
			{
				Number:          1,
				QuestionText:    "윗글의 내용과 일치하지 않는 것은?",
				Choices:         []string{"① 하나", "② 둘", "③ 셋"},
				HasNegative:     true,
				NegativeKeyword: "않는",
				Answer:          &answer,
				Explanation:     &explanation,
			},
			{
				Number:       2,
				QuestionText: "<보기>에 대한 설명으로 적절한 것은?",
				SubItems:     []string{"ㄱ. 첫째", "ㄴ. 둘째"},
				Choices:      []string{"① ㄱ", "② ㄴ"},
			},
		},
	}
}

func newRequest(t *testing.T, preset string) Request {
	req := NewRequest(sampleDoc(), filepath.Join("math", "midterm.json"), preset)
	req.OutputDir = t.TempDir()
	return req
}

func styleIDs(t *testing.T, path string) []int {
	t.Helper()
	ids, err := rewrite.StyleIDs(path)
	if err != nil {
		t.Fatalf("StyleIDs(%s) error = %v", path, err)
	}
	return ids
}

func TestGenerateWithPreset(t *testing.T) {
	f := newFixture(t)
	tmplBefore, err := os.ReadFile(f.tmpl)
	if err != nil {
		t.Fatal(err)
	}

	g := f.generator(t, nil, Options{TransplantStyles: true})
	req := newRequest(t, "exam.json")
	res, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Outcome != common.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", res.Outcome)
	}
	if res.Preset != "exam.json" {
		t.Errorf("Preset = %q, want exam.json", res.Preset)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	if len(res.Sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(res.Sheets))
	}

	wantPaths := []string{
		filepath.Join(req.OutputDir, "midterm-question.hwp"),
		filepath.Join(req.OutputDir, "midterm-explanation.hwp"),
	}
	if !slices.Equal(res.Paths(), wantPaths) {
		t.Errorf("Paths() = %v, want %v", res.Paths(), wantPaths)
	}

	// built in template: 문제 is style 2, 지문 is style 3
	for _, s := range res.Sheets {
		ids := styleIDs(t, s.Path)
		changed := 0
		for _, id := range ids {
			if id != 0 && id != 2 && id != 3 {
				t.Errorf("%s: unexpected style id %d", s.Sheet, id)
			}
			if id != 0 {
				changed++
			}
		}
		if changed == 0 || changed != s.Rewritten {
			t.Errorf("%s: %d paragraphs in named styles, rewritten %d", s.Sheet, changed, s.Rewritten)
		}
		if !slices.Contains(ids, 2) {
			t.Errorf("%s: no question paragraphs bound, ids %v", s.Sheet, ids)
		}
		if s.Sheet == common.SheetQuestion && !slices.Contains(ids, 3) {
			t.Errorf("%s: no passage paragraphs bound, ids %v", s.Sheet, ids)
		}
		if n, err := rewrite.New(zaptest.NewLogger(t)).TransplantStyles(s.Path, f.tmpl); err != nil || n != 0 {
			t.Errorf("%s: template styles missing from output, TransplantStyles() = %d, %v", s.Sheet, n, err)
		}
	}

	tmplAfter, err := os.ReadFile(f.tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tmplBefore, tmplAfter) {
		t.Error("template was modified")
	}
}

func TestGenerateWithoutPreset(t *testing.T) {
	f := newFixture(t)
	g := f.generator(t, nil, Options{})
	req := newRequest(t, "")
	res, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Outcome != common.OutcomeSuccess || res.Preset != "" {
		t.Errorf("Generate() = %s, preset %q", res.Outcome, res.Preset)
	}

	// output must be exactly what plain assembly produces
	log := zaptest.NewLogger(t)
	p, err := layers.NewResolver(f.store, log).Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	asm := assemble.New(native.New(log), log)
	for _, s := range res.Sheets {
		if s.Rewritten != 0 {
			t.Errorf("%s: rewritten %d paragraphs without preset", s.Sheet, s.Rewritten)
		}
		for _, id := range styleIDs(t, s.Path) {
			if id != 0 {
				t.Errorf("%s: style id %d without preset", s.Sheet, id)
			}
		}

		plain := filepath.Join(t.TempDir(), filepath.Base(s.Path))
		if _, err := asm.Assemble(context.Background(), p, f.tmpl, req.Content, s.Sheet, plain); err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		got, _ := os.ReadFile(s.Path)
		want, _ := os.ReadFile(plain)
		if !bytes.Equal(got, want) {
			t.Errorf("%s: output differs from plain assembly", s.Sheet)
		}
	}
}

func TestGenerateConsistency(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.store.UserPath, `{"format": {"fontSize": 10}}`)

	t.Run("warnings do not stop generation", func(t *testing.T) {
		g := f.generator(t, nil, Options{})
		res, err := g.Generate(context.Background(), newRequest(t, "exam.json"))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if res.Outcome != common.OutcomeSuccess {
			t.Errorf("Outcome = %s, want success", res.Outcome)
		}
		found := false
		for _, w := range res.Warnings {
			if w.Field == validate.FieldSize && w.Profile == "10" && w.Template == "9.5" {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want font size 10 vs 9.5", res.Warnings)
		}
		if len(res.Drift) == 0 {
			t.Error("user override of preset key not reported as drift")
		}
	})

	t.Run("strict mode aborts", func(t *testing.T) {
		g := f.generator(t, nil, Options{StrictConsistency: true})
		req := newRequest(t, "exam.json")
		res, err := g.Generate(context.Background(), req)
		if !errors.Is(err, validate.ErrInconsistent) {
			t.Fatalf("Generate() error = %v, want ErrInconsistent", err)
		}
		if stage, ok := FailedStage(err); !ok || stage != StageValidate {
			t.Errorf("FailedStage() = %s, %v, want validate", stage, ok)
		}
		if res.Outcome != common.OutcomeFailed || len(res.Sheets) != 0 {
			t.Errorf("Result = %s with %d sheets", res.Outcome, len(res.Sheets))
		}
		if entries, _ := os.ReadDir(req.OutputDir); len(entries) != 0 {
			t.Errorf("output directory is not empty: %v", entries)
		}
	})
}

func TestGenerateMissingStyle(t *testing.T) {
	f := newFixture(t)
	g := f.generator(t, nil, Options{})
	req := newRequest(t, "broken.json")

	_, err := g.Generate(context.Background(), req)
	if !errors.Is(err, styles.ErrRequiredStyleMissing) {
		t.Fatalf("Generate() error = %v, want ErrRequiredStyleMissing", err)
	}
	if stage, _ := FailedStage(err); stage != StageStyles {
		t.Errorf("FailedStage() = %s, want styles", stage)
	}
	if entries, _ := os.ReadDir(req.OutputDir); len(entries) != 0 {
		t.Errorf("output directory is not empty: %v", entries)
	}
}

func TestGenerateUnknownPreset(t *testing.T) {
	f := newFixture(t)
	g := f.generator(t, nil, Options{})

	_, err := g.Generate(context.Background(), newRequest(t, "nope.json"))
	if !errors.Is(err, layers.ErrPresetNotFound) {
		t.Fatalf("Generate() error = %v, want ErrPresetNotFound", err)
	}
	if stage, _ := FailedStage(err); stage != StageResolve {
		t.Errorf("FailedStage() = %s, want resolve", stage)
	}
}

type brokenSurface struct{}

func (brokenSurface) Open(context.Context, string) (assemble.Session, error) {
	return nil, errors.New("host application is not installed")
}

func TestGenerateTextFallback(t *testing.T) {
	f := newFixture(t)

	t.Run("fallback", func(t *testing.T) {
		g := f.generator(t, brokenSurface{}, Options{TextFallback: true})
		req := newRequest(t, "exam.json")
		req.Sheets = []common.Sheet{common.SheetExplanation}

		res, err := g.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if res.Outcome != common.OutcomeDegraded || len(res.Sheets) != 1 {
			t.Fatalf("Result = %s with %d sheets, want single degraded", res.Outcome, len(res.Sheets))
		}
		s := res.Sheets[0]
		if !s.Fallback || !errors.Is(s.Err, assemble.ErrSurfaceUnavailable) {
			t.Errorf("sheet = %+v, want fallback caused by unavailable surface", s)
		}
		want := filepath.Join(req.OutputDir, "midterm-explanation.txt")
		if s.Path != want {
			t.Errorf("Path = %s, want %s", s.Path, want)
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != exam.RenderText(req.Content, common.SheetExplanation) {
			t.Errorf("unexpected text sheet:\n%s", data)
		}
		if _, err := os.Stat(filepath.Join(req.OutputDir, "midterm-explanation.hwp")); !os.IsNotExist(err) {
			t.Error("partial document left behind")
		}
	})

	t.Run("no fallback", func(t *testing.T) {
		g := f.generator(t, brokenSurface{}, Options{})
		_, err := g.Generate(context.Background(), newRequest(t, ""))
		if !errors.Is(err, assemble.ErrSurfaceUnavailable) {
			t.Fatalf("Generate() error = %v, want ErrSurfaceUnavailable", err)
		}
		if stage, _ := FailedStage(err); stage != StageAssemble {
			t.Errorf("FailedStage() = %s, want assemble", stage)
		}
	})
}

func TestGenerateOverwrite(t *testing.T) {
	f := newFixture(t)
	req := newRequest(t, "")

	if _, err := f.generator(t, nil, Options{}).Generate(context.Background(), req); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	_, err := f.generator(t, nil, Options{}).Generate(context.Background(), req)
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("second Generate() error = %v, want ErrOutputExists", err)
	}
	if stage, _ := FailedStage(err); stage != StageOutput {
		t.Errorf("FailedStage() = %s, want output", stage)
	}
	if _, err := f.generator(t, nil, Options{Overwrite: true}).Generate(context.Background(), req); err != nil {
		t.Errorf("Generate() with overwrite error = %v", err)
	}
}

func TestGenerateSheets(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		defaults []common.Sheet
		request  []common.Sheet
		answers  bool
		want     []common.Sheet
	}{
		{"everything content supports", nil, nil, true, []common.Sheet{common.SheetQuestion, common.SheetExplanation}},
		{"no answers", nil, nil, false, []common.Sheet{common.SheetQuestion}},
		{"configured", []common.Sheet{common.SheetExplanation}, nil, true, []common.Sheet{common.SheetExplanation}},
		{"request wins", []common.Sheet{common.SheetExplanation}, []common.Sheet{common.SheetQuestion}, true, []common.Sheet{common.SheetQuestion}},
		{"unsupported dropped", nil, []common.Sheet{common.SheetExplanation, common.SheetQuestion}, false, []common.Sheet{common.SheetQuestion}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := f.generator(t, nil, Options{Sheets: tt.defaults})
			req := newRequest(t, "")
			req.Sheets = tt.request
			if !tt.answers {
				req.Content.FileType = "TYPE_B"
				for i := range req.Content.Questions {
					req.Content.Questions[i].Answer = nil
					req.Content.Questions[i].Explanation = nil
				}
			}
			if got := g.sheets(req); !slices.Equal(got, tt.want) {
				t.Errorf("sheets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := newRequest(t, "exam.json")
	res, err := f.generator(t, nil, Options{}).Generate(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if res == nil || res.Outcome != common.OutcomeFailed {
		t.Errorf("Result = %+v, want failed", res)
	}
}

func TestGenerateJournal(t *testing.T) {
	f := newFixture(t)
	j, err := journal.Open(journal.InMemory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	g := f.generator(t, nil, Options{}, WithJournal(j))
	req := newRequest(t, "exam.json")
	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := g.Generate(context.Background(), newRequest(t, "nope.json")); err == nil {
		t.Fatal("Generate() with unknown preset succeeded")
	}

	runs, err := j.Runs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("journal has %d runs, want 3", len(runs))
	}
	failed := 0
	for _, r := range runs {
		if r.Outcome == common.OutcomeFailed {
			failed++
			if r.Preset != "nope.json" || r.Error == "" {
				t.Errorf("failed run = %+v", r)
			}
		}
	}
	if failed != 1 {
		t.Errorf("journal has %d failed runs, want 1", failed)
	}

	preset, found, err := j.LastPreset()
	if err != nil || !found || preset != "exam.json" {
		t.Errorf("LastPreset() = %q, %v, %v, want exam.json", preset, found, err)
	}
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	g := f.generator(t, nil, Options{})

	res, err := g.Check("exam.json")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.OK() || res.Disabled || res.Template != f.tmpl {
		t.Errorf("Check(exam) = %+v", res)
	}

	res, err = g.Check("broken.json")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !errors.Is(res.Missing, styles.ErrRequiredStyleMissing) || res.OK() {
		t.Errorf("Check(broken) = %+v", res)
	}

	res, err = g.Check("")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Disabled {
		t.Errorf("Check(no preset) = %+v, want disabled", res)
	}
}

func TestEnsureDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "default.hwp")
	if err := EnsureDefaultTemplate(path); err != nil {
		t.Fatalf("EnsureDefaultTemplate() error = %v", err)
	}
	d, err := styles.ReadStyles(path)
	if err != nil {
		t.Fatalf("ReadStyles() error = %v", err)
	}
	if _, ok := d.Lookup("문제"); !ok {
		t.Error("default template has no question style")
	}

	// existing file is kept
	writeFile(t, path, "custom")
	if err := EnsureDefaultTemplate(path); err != nil {
		t.Fatalf("EnsureDefaultTemplate() error = %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "custom" {
		t.Error("existing template replaced")
	}
}
