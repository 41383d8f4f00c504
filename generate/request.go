// Package generate runs the whole pipeline for a generation request:
// profile resolution, template style directory, consistency check, document
// assembly and style reference rewrite.
package generate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"exgen/common"
	"exgen/exam"
	"exgen/layers"
	"exgen/validate"
)

// ErrOutputExists is returned when sheet would overwrite existing file and
// overwriting was not requested.
var ErrOutputExists = errors.New("output file already exists")

// Stage of the pipeline.
type Stage int

const (
	StageResolve Stage = iota
	StageStyles
	StageValidate
	StageOutput
	StageAssemble
	StageRewrite
)

var stageNames = []string{"resolve", "styles", "validate", "output", "assemble", "rewrite"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is failure of a pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns stage err happened at, false when err did not come from
// the pipeline.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

// Request is a single unit of work. Preset is part of the request, empty
// preset means two layer configuration.
type Request struct {
	ID uuid.UUID
	// source of the content, relative to processed directory or archive, used
	// for output names
	ContentPath string
	Content     *exam.Document
	// empty means directory configured by profile or application
	OutputDir string
	Preset    string
	// empty means every sheet content supports
	Sheets []common.Sheet
}

// NewRequest creates request with fresh time ordered identifier.
func NewRequest(content *exam.Document, contentPath, preset string) Request {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Request{ID: id, ContentPath: contentPath, Content: content, Preset: preset}
}

// SheetResult describes single produced sheet.
type SheetResult struct {
	Sheet   common.Sheet
	Path    string
	Outcome common.Outcome
	// number of paragraphs whose style reference was rewritten
	Rewritten int
	// plain text was written instead of document
	Fallback bool
	Err      error
}

// Result of a request.
type Result struct {
	ID      uuid.UUID
	Preset  string
	Outcome common.Outcome
	// consistency warnings, never fatal unless strict mode is on
	Warnings []validate.Warning
	Drift    []layers.DriftWarning
	Sheets   []SheetResult
	Err      error
}

// Paths returns produced files.
func (r *Result) Paths() []string {
	var out []string
	for _, s := range r.Sheets {
		if s.Path != "" && s.Outcome != common.OutcomeFailed {
			out = append(out, s.Path)
		}
	}
	return out
}
