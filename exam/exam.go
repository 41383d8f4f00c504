// Package exam defines content model of an exam produced by external problem
// text parser.
package exam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"exgen/common"
)

// FileTypeWithAnswers marks documents which carry answers and explanations.
const FileTypeWithAnswers = "TYPE_A"

// ErrNoQuestions is returned for documents without questions.
var ErrNoQuestions = errors.New("document has no questions")

type Question struct {
	Number          int      `json:"number"`
	QuestionText    string   `json:"questionText"`
	Choices         []string `json:"choices,omitempty"`
	SubItems        []string `json:"subItems,omitempty"`
	HasTable        bool     `json:"hasTable,omitempty"`
	HasNegative     bool     `json:"hasNegative,omitempty"`
	NegativeKeyword string   `json:"negativeKeyword,omitempty"`
	Answer          *string  `json:"answer,omitempty"`
	Explanation     *string  `json:"explanation,omitempty"`
}

// Emphasis splits question text around the first occurrence of negative
// keyword. Found is false when there is nothing to emphasize.
func (q *Question) Emphasis() (before, keyword, after string, found bool) {
	if q.NegativeKeyword == "" {
		return q.QuestionText, "", "", false
	}
	before, after, found = strings.Cut(q.QuestionText, q.NegativeKeyword)
	if !found {
		return q.QuestionText, "", "", false
	}
	return before, q.NegativeKeyword, after, true
}

// AnswerText returns answer or a dash when question has none.
func (q *Question) AnswerText() string {
	if q.Answer == nil || strings.TrimSpace(*q.Answer) == "" {
		return "-"
	}
	return strings.TrimSpace(*q.Answer)
}

// ExplanationText returns explanation or empty string.
func (q *Question) ExplanationText() string {
	if q.Explanation == nil {
		return ""
	}
	return strings.TrimSpace(*q.Explanation)
}

type Document struct {
	FileType  string     `json:"fileType"`
	Subject   string     `json:"subject"`
	Questions []Question `json:"questions"`
}

// Load decodes document.
func Load(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("unable to decode exam content: %w", err)
	}
	if len(d.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	for i := range d.Questions {
		if d.Questions[i].Number <= 0 {
			d.Questions[i].Number = i + 1
		}
	}
	return &d, nil
}

// LoadFile decodes document from file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(data))
}

// HasAnswers reports whether explanation sheet can be produced.
func (d *Document) HasAnswers() bool {
	if d.FileType == FileTypeWithAnswers {
		return true
	}
	for _, q := range d.Questions {
		if q.Answer != nil || q.Explanation != nil {
			return true
		}
	}
	return false
}

// Sheets returns sheets document can be rendered to.
func (d *Document) Sheets() []common.Sheet {
	if d.HasAnswers() {
		return []common.Sheet{common.SheetQuestion, common.SheetExplanation}
	}
	return []common.Sheet{common.SheetQuestion}
}

// RenderText renders sheet as plain text, used when document can not be
// produced in host format.
func RenderText(d *Document, sheet common.Sheet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", sheet.Title())
	if d.Subject != "" {
		fmt.Fprintf(&b, "과목: %s\n", d.Subject)
	}
	fmt.Fprintf(&b, "유형: %s\n", d.FileType)
	fmt.Fprintf(&b, "문항 수: %d\n\n", len(d.Questions))

	for _, q := range d.Questions {
		switch sheet {
		case common.SheetExplanation:
			fmt.Fprintf(&b, "%02d. 정답 %s\n", q.Number, q.AnswerText())
			if e := q.ExplanationText(); e != "" {
				b.WriteString(e)
				b.WriteByte('\n')
			}
		default:
			lines := []string{strings.TrimRight(fmt.Sprintf("%02d. %s", q.Number, q.QuestionText), " \t")}
			lines = append(lines, q.SubItems...)
			lines = append(lines, q.Choices...)
			b.WriteString(strings.TrimSpace(strings.Join(lines, "\n")))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
