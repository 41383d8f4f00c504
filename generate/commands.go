package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"exgen/layers"
	"exgen/state"
	"exgen/styles"
	"exgen/validate"
)

// CheckResult describes how well preset fits its template.
type CheckResult struct {
	Preset   string
	Template string
	// named styles are not used by the profile
	Disabled bool
	// required style is absent, generation with this preset would fail
	Missing  error
	Warnings []validate.Warning
	Drift    []layers.DriftWarning
}

// OK is true when generation would run without problems.
func (c *CheckResult) OK() bool {
	return c.Missing == nil && len(c.Warnings) == 0
}

// Check resolves preset and compares it with template styles without
// producing anything.
func (g *Generator) Check(preset string) (*CheckResult, error) {
	p, err := g.resolver.Resolve(preset)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{Preset: p.PresetFile(), Drift: p.Drift}
	if res.Template, err = g.templatePath(p); err != nil {
		return nil, err
	}
	if p.Preset == nil || !p.Style.Enabled {
		res.Disabled = true
		return res, nil
	}

	dir, err := g.styles.Read(res.Template)
	if err != nil {
		return nil, err
	}
	if err := dir.Require(boundStyles(p)...); err != nil {
		if !errors.Is(err, styles.ErrRequiredStyleMissing) {
			return nil, err
		}
		res.Missing = err
	}
	res.Warnings = validate.Validate(p, dir.Map(), dir)
	return res, nil
}

func writeCheck(w io.Writer, c *CheckResult) {
	fmt.Fprintf(w, "preset:   %s\n", orNone(c.Preset))
	fmt.Fprintf(w, "template: %s\n", c.Template)
	for _, d := range c.Drift {
		fmt.Fprintf(w, "drift:    %s\n", d)
	}
	switch {
	case c.Disabled:
		fmt.Fprintln(w, "named styles are not used")
		return
	case c.Missing != nil:
		fmt.Fprintf(w, "error:    %v\n", c.Missing)
	}
	for _, warn := range c.Warnings {
		fmt.Fprintf(w, "warning:  %s\n", warn)
	}
	if c.OK() {
		fmt.Fprintln(w, "preset matches template")
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// CheckPreset is the action of check command.
func CheckPreset(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	gen, err := NewFromEnv(env)
	if err != nil {
		return err
	}
	preset := cmd.Args().Get(0)
	res, err := gen.Check(preset)
	if err != nil {
		return fmt.Errorf("unable to check preset '%s': %w", preset, err)
	}
	writeCheck(os.Stdout, res)
	if res.Missing != nil || (cmd.Bool("strict") && len(res.Warnings) > 0) {
		return errors.New("preset does not match its template")
	}
	return nil
}

// ListPresets is the action of presets command.
func ListPresets(ctx context.Context, _ *cli.Command) error {
	env := state.EnvFromContext(ctx)

	store := env.Cfg.Layers.Store()
	presets, err := layers.ListPresets(store.PresetsDir)
	if err != nil {
		return fmt.Errorf("unable to list presets: %w", err)
	}
	env.Log.Debug("Presets listed", zap.String("dir", store.PresetsDir), zap.Int("count", len(presets)))
	writePresets(os.Stdout, store, presets)
	return nil
}

func writePresets(w io.Writer, store layers.Store, presets []*layers.Preset) {
	if len(presets) == 0 {
		fmt.Fprintln(w, "no presets found")
		return
	}
	width := 0
	for _, p := range presets {
		width = max(width, len(p.File))
	}
	for _, p := range presets {
		fmt.Fprintf(w, "%-*s  %s\n", width, p.File, p.Name)
		if p.Description != "" {
			fmt.Fprintf(w, "%-*s  %s\n", width, "", p.Description)
		}
		if p.TemplatePath != "" {
			tmpl, recovered := store.ResolveTemplate(p.TemplatePath)
			if recovered {
				tmpl += " (recovered)"
			}
			fmt.Fprintf(w, "%-*s  template: %s\n", width, "", tmpl)
		}
	}
}

// DumpStyles is the action of styles command.
func DumpStyles(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	path := cmd.Args().Get(0)
	if path == "" {
		path = env.Cfg.DefaultTemplatePath()
		if err := EnsureDefaultTemplate(path); err != nil {
			return err
		}
	}
	dir, err := styles.ReadStyles(path)
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, dir.Dump())
	return err
}

// WriteTemplate is the action of template command.
func WriteTemplate(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	path := cmd.Args().Get(0)
	if path == "" {
		path = env.Cfg.DefaultTemplatePath()
	}
	if _, err := os.Stat(path); err == nil && !cmd.Bool("overwrite") {
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	}
	if err := WriteDefaultTemplate(path); err != nil {
		return err
	}
	env.Log.Info("Default template written", zap.String("file", path))
	return nil
}

// ShowJournal is the action of last command.
func ShowJournal(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if env.Journal == nil {
		return errors.New("journal is disabled")
	}

	preset, found, err := env.Journal.LastPreset()
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stdout, "no successful runs")
	} else {
		fmt.Fprintf(os.Stdout, "last preset: %s\n", orNone(preset))
	}

	runs, err := env.Journal.Runs(int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, r := range runs {
		line := []string{r.Started.Local().Format(time.DateTime), r.Outcome.String(), orNone(r.Preset), r.Sheet.String(), r.Output}
		if r.Error != "" {
			line = append(line, r.Error)
		}
		fmt.Fprintln(os.Stdout, strings.Join(line, "\t"))
	}
	return nil
}
