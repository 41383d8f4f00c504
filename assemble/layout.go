package assemble

import (
	"fmt"
	"strings"

	"exgen/common"
	"exgen/exam"
)

// Run is a piece of paragraph text with the same formatting.
type Run struct {
	Text     string
	Emphasis bool
}

// Block is one paragraph of generated sheet.
type Block struct {
	Role common.Role
	Runs []Run
}

// Text returns paragraph text without formatting.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Layout turns content into paragraphs of the sheet. Every question ends
// with an empty separator paragraph.
func Layout(doc *exam.Document, sheet common.Sheet) []Block {
	var out []Block
	for i := range doc.Questions {
		q := &doc.Questions[i]
		switch sheet {
		case common.SheetExplanation:
			out = appendBlock(out, common.RoleQuestion, Run{Text: fmt.Sprintf("%d. 정답 %s", q.Number, q.AnswerText())})
			if e := q.ExplanationText(); e != "" {
				out = appendBlock(out, common.RoleExplanation, Run{Text: e})
			}
		default:
			runs := []Run{{Text: fmt.Sprintf("%d. ", q.Number)}}
			if before, kw, after, ok := q.Emphasis(); ok {
				runs = append(runs, Run{Text: before}, Run{Text: kw, Emphasis: true}, Run{Text: after})
			} else {
				runs[0].Text += q.QuestionText
			}
			out = appendBlock(out, common.RoleQuestion, runs...)
			for _, s := range q.SubItems {
				out = appendBlock(out, common.RoleSubItems, Run{Text: s})
			}
			for _, c := range q.Choices {
				out = appendBlock(out, common.RoleChoice, Run{Text: c})
			}
		}
		out = append(out, Block{Role: common.RoleNone})
	}
	return out
}

// appendBlock adds paragraph splitting it on line breaks, every piece keeps
// the role.
func appendBlock(out []Block, role common.Role, runs ...Run) []Block {
	cur := Block{Role: role}
	for _, r := range runs {
		text := strings.ReplaceAll(strings.ReplaceAll(r.Text, "\r\n", "\n"), "\r", "\n")
		for i, piece := range strings.Split(text, "\n") {
			if i > 0 {
				out = append(out, cur)
				cur = Block{Role: role}
			}
			if piece != "" {
				cur.Runs = append(cur.Runs, Run{Text: piece, Emphasis: r.Emphasis})
			}
		}
	}
	return append(out, cur)
}
