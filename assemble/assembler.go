package assemble

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"exgen/common"
	"exgen/exam"
	"exgen/layers"
)

// Assembled describes produced document.
type Assembled struct {
	Path string
	// role of every top level paragraph in document order, paragraphs
	// preserved from template have RoleNone
	Roles []common.Role
}

// Assembler writes sheets through a surface.
type Assembler struct {
	surface Surface
	log     *zap.Logger
}

func New(surface Surface, log *zap.Logger) *Assembler {
	return &Assembler{surface: surface, log: log.Named("assemble")}
}

// CopyTemplate copies template byte for byte into output path atomically.
func CopyTemplate(templatePath, outputPath string) error {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTemplateCopyFailed, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrTemplateCopyFailed, err)
	}
	if err := renameio.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrTemplateCopyFailed, err)
	}
	return nil
}

// Assemble copies template to output path and writes sheet content into the
// copy. On failure output file is removed.
func (a *Assembler) Assemble(ctx context.Context, p *layers.Profile, templatePath string, doc *exam.Document, sheet common.Sheet, outputPath string) (res *Assembled, err error) {
	log := a.log.With(zap.Stringer("sheet", sheet), zap.String("output", outputPath))

	if err := CopyTemplate(templatePath, outputPath); err != nil {
		return nil, err
	}
	log.Debug("Template copied", zap.String("template", templatePath))

	defer func() {
		if err == nil {
			return
		}
		if rerr := os.Remove(outputPath); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = multierr.Append(err, rerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := a.surface.Open(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	roles, err := a.write(sess, p, doc, sheet)
	if err == nil {
		err = sess.Save()
	}
	if cerr := sess.Close(); cerr != nil {
		if err == nil {
			log.Warn("Unable to close document", zap.Error(cerr))
		} else {
			err = multierr.Append(err, cerr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentInsertionFailed, err)
	}

	log.Debug("Sheet assembled", zap.Int("paragraphs", len(roles)))
	return &Assembled{Path: outputPath, Roles: roles}, nil
}

func (a *Assembler) write(sess Session, p *layers.Profile, doc *exam.Document, sheet common.Sheet) ([]common.Role, error) {
	if ls, ok := sess.(LayoutSession); ok {
		if err := ls.SetPage(PageFormat(p.Page)); err != nil {
			return nil, fmt.Errorf("page setup: %w", err)
		}
		if err := ls.SetColumns(p.Format.Columns); err != nil {
			return nil, fmt.Errorf("column setup: %w", err)
		}
	}

	// everything before caret was preserved from template
	roles := make([]common.Role, sess.Paragraphs()-1, sess.Paragraphs()+64)
	for i, b := range Layout(doc, sheet) {
		if err := writeBlock(sess, p, b); err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i, err)
		}
		roles = append(roles, b.Role)
	}
	// trailing empty paragraph at caret
	roles = append(roles, common.RoleNone)

	if n := sess.Paragraphs(); n != len(roles) {
		return nil, fmt.Errorf("document has %d paragraphs, expected %d", n, len(roles))
	}
	return roles, nil
}

func writeBlock(sess Session, p *layers.Profile, b Block) error {
	role := b.Role
	if role == common.RoleNone {
		role = common.RolePassage
	}
	rf := p.RoleFormat(role)
	if err := sess.SetParaFormat(ParaFormat{
		LineSpacingPercent: rf.LineSpacingPercent,
		IndentPt:           rf.IndentPt,
		Align:              AlignJustify,
		UseGrid:            rf.UseGrid,
	}); err != nil {
		return err
	}
	cf := CharFormat{
		Font:           rf.Font,
		SizePt:         rf.SizePt,
		WidthPercent:   rf.WidthPercent,
		SpacingPercent: rf.SpacingPercent,
	}
	if err := sess.SetCharFormat(cf); err != nil {
		return err
	}
	emphasized := false
	for _, r := range b.Runs {
		if r.Emphasis != emphasized {
			f := cf
			f.Bold, f.Underline = r.Emphasis, r.Emphasis
			if err := sess.SetCharFormat(f); err != nil {
				return err
			}
			emphasized = r.Emphasis
		}
		if err := sess.InsertText(r.Text); err != nil {
			return err
		}
	}
	if emphasized {
		if err := sess.SetCharFormat(cf); err != nil {
			return err
		}
	}
	return sess.BreakParagraph()
}
