package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"exgen/assemble"
	"exgen/common"
	"exgen/config"
	"exgen/exam"
	"exgen/hwp"
	"exgen/journal"
	"exgen/layers"
	"exgen/rewrite"
	"exgen/styles"
	"exgen/validate"
)

// Options control generation, they come from application configuration and
// command line.
type Options struct {
	OutputDir             string
	OutputNameTemplate    string
	FileNameTransliterate bool
	StrictConsistency     bool
	TextFallback          bool
	TransplantStyles      bool
	Overwrite             bool
	// template used when profile does not name one, written from built in
	// template when missing
	DefaultTemplate string
	// default sheets when request does not name any
	Sheets []common.Sheet
}

// OptionsFromConfig converts generation section of application configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		OutputDir:             cfg.Generation.OutputDir,
		OutputNameTemplate:    cfg.Generation.OutputNameTemplate,
		FileNameTransliterate: cfg.Generation.FileNameTransliterate,
		StrictConsistency:     cfg.Generation.StrictConsistency,
		TextFallback:          cfg.Generation.TextFallback,
		TransplantStyles:      cfg.Generation.TransplantStyles,
		DefaultTemplate:       cfg.DefaultTemplatePath(),
	}
	for _, name := range cfg.Generation.Sheets {
		s, err := common.ParseSheet(name)
		if err != nil {
			return Options{}, err
		}
		if !slices.Contains(opts.Sheets, s) {
			opts.Sheets = append(opts.Sheets, s)
		}
	}
	return opts, nil
}

// Generator runs requests. It keeps no per request state and may be used by
// several goroutines at once.
type Generator struct {
	resolver  *layers.Resolver
	styles    styles.Reader
	assembler *assemble.Assembler
	rewriter  *rewrite.Rewriter
	journal   *journal.Journal
	rpt       *config.Report
	opts      Options
	names     namer
	log       *zap.Logger
}

// Option configures generator.
type Option func(*Generator)

// WithJournal records every produced sheet.
func WithJournal(j *journal.Journal) Option {
	return func(g *Generator) {
		g.journal = j
	}
}

// WithReport stores profiles, style directories and documents in debug report.
func WithReport(rpt *config.Report) Option {
	return func(g *Generator) {
		g.rpt = rpt
	}
}

// WithStyleReader replaces reader of template style directories.
func WithStyleReader(r styles.Reader) Option {
	return func(g *Generator) {
		g.styles = r
	}
}

func New(resolver *layers.Resolver, surface assemble.Surface, opts Options, log *zap.Logger, options ...Option) *Generator {
	log = log.Named("generate")
	g := &Generator{
		resolver:  resolver,
		styles:    styles.FileReader{},
		assembler: assemble.New(surface, log),
		rewriter:  rewrite.New(log),
		opts:      opts,
		names:     namer{template: opts.OutputNameTemplate, transliterate: opts.FileNameTransliterate, log: log},
		log:       log,
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// Generate runs request. Returned error is the reason request failed,
// degraded results come back without error. Result is never nil.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	res := &Result{ID: req.ID, Preset: req.Preset}
	started := time.Now()
	log := g.log.With(zap.Stringer("request", req.ID), zap.String("content", req.ContentPath))

	log.Info("Generation starting", zap.String("preset", req.Preset))
	err := g.run(ctx, req, res, log)
	if err != nil {
		res.Outcome, res.Err = common.OutcomeFailed, err
	}
	g.record(req, res, started, log)

	if err != nil {
		log.Error("Generation failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return res, err
	}
	log.Info("Generation completed", zap.Duration("elapsed", time.Since(started)),
		zap.Stringer("outcome", res.Outcome), zap.Strings("documents", res.Paths()))
	return res, nil
}

func (g *Generator) run(ctx context.Context, req Request, res *Result, log *zap.Logger) error {
	if req.Content == nil {
		return stageError(StageResolve, exam.ErrNoQuestions)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := g.resolver.Resolve(req.Preset)
	if err != nil {
		return stageError(StageResolve, err)
	}
	res.Preset, res.Drift = p.PresetFile(), p.Drift
	if data, err := p.MarshalJSON(); err == nil {
		g.rpt.StoreData(fmt.Sprintf("profiles/%s.json", req.ID), data)
	}

	templatePath, err := g.templatePath(p)
	if err != nil {
		return stageError(StageResolve, err)
	}

	// without preset paragraphs stay in style 0 as surface leaves them
	var roleToStyle map[common.Role]int
	if p.Preset != nil && p.Style.Enabled {
		if err := ctx.Err(); err != nil {
			return err
		}
		if roleToStyle, res.Warnings, err = g.bindStyles(p, templatePath, log); err != nil {
			return err
		}
	}

	sheets := g.sheets(req)
	if len(sheets) == 0 {
		return stageError(StageOutput, errors.New("content supports none of requested sheets"))
	}
	dir, err := g.outputDir(req, p)
	if err != nil {
		return stageError(StageOutput, err)
	}

	for _, sheet := range sheets {
		// cancellation is honored between stages only
		if err := ctx.Err(); err != nil {
			return err
		}
		sr := g.sheet(ctx, req, p, templatePath, sheet, dir, roleToStyle, log)
		res.Sheets = append(res.Sheets, sr)
		res.Outcome = res.Outcome.Worse(sr.Outcome)
		if sr.Outcome == common.OutcomeFailed {
			return sr.Err
		}
	}
	return nil
}

// bindStyles reads template style directory, makes sure every bound style
// exists, checks consistency and returns role to style index map.
func (g *Generator) bindStyles(p *layers.Profile, templatePath string, log *zap.Logger) (map[common.Role]int, []validate.Warning, error) {
	dir, err := g.styles.Read(templatePath)
	if err != nil {
		return nil, nil, stageError(StageStyles, err)
	}
	g.rpt.StoreData(fmt.Sprintf("styles/%s.txt", filepath.Base(templatePath)), []byte(dir.Dump()))

	if err := dir.Require(boundStyles(p)...); err != nil {
		return nil, nil, stageError(StageStyles, err)
	}
	m := dir.Map()

	warnings := validate.Validate(p, m, dir)
	for _, w := range warnings {
		log.Warn("Preset does not match template", zap.String("preset", p.PresetFile()), zap.Stringer("warning", w))
	}
	if g.opts.StrictConsistency {
		if err := validate.Strict(warnings); err != nil {
			return nil, warnings, stageError(StageValidate, err)
		}
	}

	roleToStyle := make(map[common.Role]int)
	for _, role := range boundRoles {
		if idx, ok := m.Index(p.StyleName(role)); ok {
			roleToStyle[role] = idx
		}
	}
	log.Debug("Styles bound", zap.String("template", templatePath), zap.Any("roles", roleToStyle))
	return roleToStyle, warnings, nil
}

// roles bound to template styles, RoleNone paragraphs keep template default
var boundRoles = []common.Role{
	common.RoleQuestion, common.RolePassage, common.RoleChoice, common.RoleSubItems, common.RoleExplanation,
}

func boundStyles(p *layers.Profile) []string {
	var names []string
	for _, role := range boundRoles {
		if n := p.StyleName(role); n != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

func (g *Generator) sheet(ctx context.Context, req Request, p *layers.Profile, templatePath string, sheet common.Sheet, dir string, roleToStyle map[common.Role]int, log *zap.Logger) SheetResult {
	sr := SheetResult{Sheet: sheet, Path: g.names.path(dir, req, p, sheet)}
	log = log.With(zap.Stringer("sheet", sheet), zap.String("output", sr.Path))

	if err := g.prepareOutput(sr.Path, log); err != nil {
		sr.Outcome, sr.Err = common.OutcomeFailed, stageError(StageOutput, err)
		return sr
	}

	asm, err := g.assembler.Assemble(ctx, p, templatePath, req.Content, sheet, sr.Path)
	if err != nil {
		if errors.Is(err, assemble.ErrSurfaceUnavailable) && g.opts.TextFallback {
			log.Warn("Document surface is not available, writing plain text", zap.Error(err))
			return g.textSheet(req, sheet, sr, err, log)
		}
		sr.Outcome, sr.Err = common.OutcomeFailed, stageError(StageAssemble, err)
		return sr
	}

	if roleToStyle != nil && g.opts.TransplantStyles {
		if n, err := g.rewriter.TransplantStyles(asm.Path, templatePath); err != nil {
			// bound indices may still be valid in document own table
			log.Warn("Unable to transplant template styles", zap.Error(err))
		} else if n > 0 {
			log.Debug("Template styles transplanted", zap.Int("styles", n))
		}
	}
	if roleToStyle != nil {
		n, err := g.rewriter.RewriteStyleIDs(asm.Path, roleToStyle, asm.Roles)
		if err != nil {
			// document is kept, it just shows no named styles
			log.Warn("Unable to bind paragraphs to named styles", zap.Error(err))
			sr.Outcome, sr.Err = common.OutcomeDegraded, stageError(StageRewrite, err)
		}
		sr.Rewritten = n
	}

	if err := g.rpt.StoreCopy(filepath.Join("documents", req.ID.String(), filepath.Base(asm.Path)), asm.Path); err != nil {
		log.Warn("Unable to store document in report", zap.Error(err))
	}
	log.Debug("Sheet produced", zap.Int("paragraphs", len(asm.Roles)), zap.Int("rewritten", sr.Rewritten))
	return sr
}

func (g *Generator) textSheet(req Request, sheet common.Sheet, sr SheetResult, cause error, log *zap.Logger) SheetResult {
	path := textPath(sr.Path)
	if err := g.prepareOutput(path, log); err != nil {
		sr.Outcome, sr.Err = common.OutcomeFailed, stageError(StageOutput, err)
		return sr
	}
	if err := renameio.WriteFile(path, []byte(exam.RenderText(req.Content, sheet)), 0644); err != nil {
		sr.Outcome, sr.Err = common.OutcomeFailed, stageError(StageOutput, multierr.Append(cause, err))
		return sr
	}
	sr.Path, sr.Fallback = path, true
	sr.Outcome, sr.Err = common.OutcomeDegraded, stageError(StageAssemble, cause)
	return sr
}

// prepareOutput checks that output may be written.
func (g *Generator) prepareOutput(path string, log *zap.Logger) error {
	if _, err := os.Stat(path); err == nil {
		if !g.opts.Overwrite {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		log.Warn("Overwriting existing file", zap.String("file", path))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// sheets returns sheets to produce: requested ones, or configured ones, or
// everything content supports. Explanation sheet is skipped for content
// without answers.
func (g *Generator) sheets(req Request) []common.Sheet {
	want := req.Sheets
	if len(want) == 0 {
		want = g.opts.Sheets
	}
	supported := req.Content.Sheets()
	if len(want) == 0 {
		return supported
	}
	var out []common.Sheet
	for _, s := range want {
		if slices.Contains(supported, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func (g *Generator) outputDir(req Request, p *layers.Profile) (string, error) {
	for _, dir := range []string{req.OutputDir, p.Output.Directory, g.opts.OutputDir} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	return os.Getwd()
}

// templatePath returns template of the profile, or configured default one.
func (g *Generator) templatePath(p *layers.Profile) (string, error) {
	if p.Style.TemplatePath != "" {
		return p.Style.TemplatePath, nil
	}
	if g.opts.DefaultTemplate == "" {
		return "", errors.New("profile names no template and default template is not configured")
	}
	if err := EnsureDefaultTemplate(g.opts.DefaultTemplate); err != nil {
		return "", err
	}
	return g.opts.DefaultTemplate, nil
}

// EnsureDefaultTemplate writes built in template to path unless file is
// already there.
func EnsureDefaultTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return WriteDefaultTemplate(path)
}

// WriteDefaultTemplate writes built in template to path replacing existing
// file.
func WriteDefaultTemplate(path string) error {
	img, err := hwp.DefaultTemplate()
	if err != nil {
		return fmt.Errorf("unable to build default template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create template directory: %w", err)
	}
	if err := renameio.WriteFile(path, img, 0644); err != nil {
		return fmt.Errorf("unable to write default template: %w", err)
	}
	return nil
}

// record stores one journal run per sheet, requests which failed before any
// sheet was attempted are recorded under their first sheet.
func (g *Generator) record(req Request, res *Result, started time.Time, log *zap.Logger) {
	if g.journal == nil {
		return
	}
	runs := make([]journal.Run, 0, len(res.Sheets)+1)
	for _, s := range res.Sheets {
		r := journal.Run{
			ID:        req.ID.String() + "-" + s.Sheet.String(),
			Started:   started,
			Preset:    res.Preset,
			Content:   req.ContentPath,
			Sheet:     s.Sheet,
			Output:    s.Path,
			Outcome:   s.Outcome,
			Warnings:  len(res.Warnings),
			Rewritten: s.Rewritten,
		}
		if s.Err != nil {
			r.Error = s.Err.Error()
		}
		runs = append(runs, r)
	}
	if len(res.Sheets) == 0 && res.Err != nil {
		sheet := common.SheetQuestion
		if len(req.Sheets) > 0 {
			sheet = req.Sheets[0]
		}
		runs = append(runs, journal.Run{
			ID:       req.ID.String() + "-" + sheet.String(),
			Started:  started,
			Preset:   req.Preset,
			Content:  req.ContentPath,
			Sheet:    sheet,
			Outcome:  common.OutcomeFailed,
			Warnings: len(res.Warnings),
			Error:    res.Err.Error(),
		})
	}
	for _, r := range runs {
		if err := g.journal.RecordRun(r); err != nil {
			log.Warn("Unable to record run", zap.Error(err))
		}
	}
}
