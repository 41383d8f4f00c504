package generate

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"exgen/common"
	"exgen/exam"
	"exgen/layers"
)

func TestNamerPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	req := Request{
		ID:          uuid.MustParse("0191e5a8-2b3c-7d4e-8f00-112233445566"),
		ContentPath: filepath.Join("math", "midterm.json"),
		Content: &exam.Document{
			FileType:  exam.FileTypeWithAnswers,
			Subject:   "Math Exam",
			Questions: make([]exam.Question, 3),
		},
	}
	profile := &layers.Profile{Preset: &layers.Preset{File: "school.json"}}

	tests := []struct {
		name          string
		template      string
		transliterate bool
		sheet         common.Sheet
		want          string
	}{
		{"default", "", false, common.SheetQuestion, "midterm-question.hwp"},
		{"default explanation", "", false, common.SheetExplanation, "midterm-explanation.hwp"},
		{"fields", "{{ .Preset }}_{{ .SourceFile }}_{{ .Sheet }}", false, common.SheetQuestion, "school_midterm_question.hwp"},
		{"sheet title", "{{ .SourceFile }} {{ .SheetTitle }}", false, common.SheetExplanation, "midterm 해설지.hwp"},
		{"subdirectories", "{{ .Subject }}/{{ .SourceFile }}", false, common.SheetQuestion, filepath.Join("Math Exam", "midterm.hwp")},
		{"transliterated", "{{ .Subject }}/{{ .SourceFile }}", true, common.SheetQuestion, filepath.Join("math-exam", "midterm.hwp")},
		{"sprig", "{{ .SourceFile | upper }}-{{ .Questions }}", false, common.SheetQuestion, "MIDTERM-3.hwp"},
		{"request id", `{{ printf "%.8s" .RequestID }}`, false, common.SheetQuestion, "0191e5a8.hwp"},
		{"no escape", "../../{{ .SourceFile }}", false, common.SheetQuestion, "midterm.hwp"},
		{"empty expansion", "{{ if false }}x{{ end }}", false, common.SheetQuestion, "midterm-question.hwp"},
		{"bad template", "{{ .SourceFile", false, common.SheetQuestion, "midterm-question.hwp"},
		{"unknown field", "{{ .Nope }}", false, common.SheetQuestion, "midterm-question.hwp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := namer{template: tt.template, transliterate: tt.transliterate, log: zaptest.NewLogger(t)}
			got := n.path(dir, req, profile, tt.sheet)
			if want := filepath.Join(dir, tt.want); got != want {
				t.Errorf("path() = %s, want %s", got, want)
			}
		})
	}
}

func TestSourceBase(t *testing.T) {
	tests := map[string]string{
		"":                                    "exam",
		"midterm.json":                        "midterm",
		filepath.Join("a", "b", "final.json"): "final",
		"noext":                               "noext",
	}
	for in, want := range tests {
		if got := sourceBase(in); got != want {
			t.Errorf("sourceBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextPath(t *testing.T) {
	if got, want := textPath(filepath.Join("out", "midterm-question.hwp")), filepath.Join("out", "midterm-question.txt"); got != want {
		t.Errorf("textPath() = %s, want %s", got, want)
	}
}
