package rewrite

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"exgen/hwp"
)

func writeSkeleton(t *testing.T, name string, sk hwp.Skeleton) string {
	t.Helper()
	img, err := sk.Build()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, img, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func styleNames(t *testing.T, path string) ([]string, int32) {
	t.Helper()
	doc, err := hwp.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := doc.DocInfo()
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, s := range info.Styles {
		out = append(out, s.Name)
	}
	return out, info.IDMappings[hwp.IDStyle]
}

func TestTransplantStyles(t *testing.T) {
	want := []string{"바탕글", "본문", "문제", "지문"}
	template := writeSkeleton(t, "template.hwp", hwp.DefaultSkeleton())

	tests := []struct {
		name       string
		compressed bool
		styles     func([]hwp.StyleDef) []hwp.StyleDef
	}{
		{"renamed", true, func(s []hwp.StyleDef) []hwp.StyleDef {
			s[2].Name, s[3].Name = "Q", "P"
			return s
		}},
		{"renamed plain", false, func(s []hwp.StyleDef) []hwp.StyleDef {
			s[2].Name, s[3].Name = "Q", "P"
			return s
		}},
		{"extra styles", true, func(s []hwp.StyleDef) []hwp.StyleDef {
			return append(s, hwp.StyleDef{Name: "개요 1", Font: "함초롬돋움", SizePt: 10, WidthPercent: 100, LineSpacingPercent: 160},
				hwp.StyleDef{Name: "개요 2", Font: "함초롬돋움", SizePt: 10, WidthPercent: 100, LineSpacingPercent: 160})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sk := hwp.DefaultSkeleton()
			sk.Compressed = tt.compressed
			sk.Styles = tt.styles(sk.Styles)
			sk.Paragraphs = []string{"1. 문제", "지문 내용"}
			path := writeSkeleton(t, "out.hwp", sk)

			rw := New(zaptest.NewLogger(t))
			n, err := rw.TransplantStyles(path, template)
			if err != nil {
				t.Fatalf("TransplantStyles() error = %v", err)
			}
			if n != len(want) {
				t.Errorf("TransplantStyles() = %d, want %d", n, len(want))
			}
			names, count := styleNames(t, path)
			if diff := cmp.Diff(want, names); diff != "" {
				t.Errorf("styles mismatch (-want +got):\n%s", diff)
			}
			if count != int32(len(want)) {
				t.Errorf("ID_MAPPINGS style count = %d, want %d", count, len(want))
			}

			// body is untouched and still takes style references
			ids, err := StyleIDs(path)
			if err != nil {
				t.Fatalf("StyleIDs() error = %v", err)
			}
			if diff := cmp.Diff([]int{0, 0, 0}, ids); diff != "" {
				t.Errorf("StyleIDs() mismatch (-want +got):\n%s", diff)
			}

			n, err = rw.TransplantStyles(path, template)
			if err != nil || n != 0 {
				t.Errorf("second TransplantStyles() = %d, %v, want 0", n, err)
			}
		})
	}
}

func TestTransplantStylesErrors(t *testing.T) {
	template := writeSkeleton(t, "template.hwp", hwp.DefaultSkeleton())

	// two styles mean two shapes, template styles refer to four
	sk := hwp.DefaultSkeleton()
	sk.Styles = sk.Styles[:2]
	small := writeSkeleton(t, "small.hwp", sk)
	before, err := os.ReadFile(small)
	if err != nil {
		t.Fatal(err)
	}

	notHWP := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(notHWP, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		template string
		want     error
	}{
		{"missing shapes", small, template, ErrStyleTransplantFailed},
		{"bad template", small, notHWP, ErrStyleTransplantFailed},
		{"bad output", notHWP, template, ErrOutputUnreadable},
	}
	rw := New(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rw.TransplantStyles(tt.path, tt.template); !errors.Is(err, tt.want) {
				t.Errorf("TransplantStyles() error = %v, want %v", err, tt.want)
			}
		})
	}

	after, err := os.ReadFile(small)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed TransplantStyles() changed the document")
	}
}
