// Package common keeps small enumerations shared by configuration, pipeline
// stages and command line.
package common

//go:generate go tool go-enum --marshal --names --nocase --file=$GOFILE

// Role of a paragraph in generated document, it decides both direct
// formatting and the named style paragraph is bound to. RoleNone marks
// paragraphs which keep template defaults: paragraphs preserved from the
// template and blank separators.
// ENUM(none, question, passage, choice, subItems, explanation)
type Role int

// FormatsLikePassage reports roles which take passage character format.
func (r Role) FormatsLikePassage() bool {
	switch r {
	case RolePassage, RoleChoice, RoleSubItems, RoleExplanation:
		return true
	}
	return false
}

// Outcome of a generation request. Degraded means document was produced but
// its paragraphs could not be bound to named styles.
// ENUM(success, degraded, failed)
type Outcome int

// Worse returns the more severe of two outcomes.
func (o Outcome) Worse(other Outcome) Outcome {
	return max(o, other)
}

// Sheet is a kind of generated document.
// ENUM(question, explanation)
type Sheet int

// Title returns human readable sheet name used in default output names.
func (s Sheet) Title() string {
	switch s {
	case SheetQuestion:
		return "문제지"
	case SheetExplanation:
		return "해설지"
	}
	return s.String()
}
