package generate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"exgen/common"
	"exgen/config"
	"exgen/layers"
)

// DocumentExt is extension of produced documents.
const DocumentExt = ".hwp"

// TextExt is extension of plain text sheets.
const TextExt = ".txt"

// Values is a struct that holds variables we make available for output name
// template expansion.
type Values struct {
	Context    string
	Subject    string
	FileType   string
	Sheet      string
	SheetTitle string
	SourceFile string
	Preset     string
	RequestID  string
	Questions  int
}

func buildValues(name config.TemplateFieldName, req Request, p *layers.Profile, sheet common.Sheet) Values {
	v := Values{
		Context:    string(name),
		Sheet:      sheet.String(),
		SheetTitle: sheet.Title(),
		SourceFile: sourceBase(req.ContentPath),
		Preset:     strings.TrimSuffix(p.PresetFile(), filepath.Ext(p.PresetFile())),
		RequestID:  req.ID.String(),
	}
	if req.Content != nil {
		v.Subject = req.Content.Subject
		v.FileType = req.Content.FileType
		v.Questions = len(req.Content.Questions)
	}
	return v
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sourceBase(src string) string {
	base := strings.TrimSuffix(filepath.Base(filepath.FromSlash(src)), filepath.Ext(src))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "exam"
	}
	return base
}

// namer builds output paths of sheets.
type namer struct {
	template      string
	transliterate bool
	log           *zap.Logger
}

// path returns output file path of the sheet in directory dir: either
// default "<source>-<sheet>.hwp" or expanded name template which may contain
// subdirectories. Every path segment is cleaned and if requested
// transliterated.
func (n namer) path(dir string, req Request, p *layers.Profile, sheet common.Sheet) string {
	def := filepath.Join(dir, n.clean(sourceBase(req.ContentPath)+"-"+sheet.String())+DocumentExt)
	if n.template == "" {
		return def
	}

	expanded, err := expandTemplate(config.OutputNameTemplateFieldName, n.template, buildValues(config.OutputNameTemplateFieldName, req, p, sheet))
	if err != nil {
		n.log.Warn("Unable to prepare output filename", zap.Error(err))
		return def
	}
	segments := splitPath(filepath.FromSlash(expanded))
	if len(segments) == 0 {
		// fallback to default name if template expanded to nothing
		return def
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, dir)
	for _, s := range segments[:len(segments)-1] {
		parts = append(parts, n.clean(s))
	}
	parts = append(parts, n.clean(segments[len(segments)-1])+DocumentExt)
	return filepath.Join(parts...)
}

func (n namer) clean(segment string) string {
	if n.transliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}

// splitPath returns non empty path segments, "." and ".." are dropped so
// template can not escape output directory.
func splitPath(path string) []string {
	segments := make([]string, 0, 8)
	for _, s := range strings.Split(path, string(os.PathSeparator)) {
		s = strings.TrimSpace(s)
		if s == "" || s == "." || s == ".." {
			continue
		}
		segments = append(segments, s)
	}
	return slices.Clip(segments)
}

// textPath returns path of plain text fallback for the document path.
func textPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + TextExt
}
