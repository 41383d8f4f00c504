package styles

import (
	"exgen/utils/debug"
)

// Dump returns human readable tree of the style directory.
func (d *Directory) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Template %s (version %s), %d styles", d.Source, d.Version, len(d.Entries))
	for _, e := range d.Entries {
		tw.Line(1, "[%d] %s", e.Index, e.Name)
		if e.EnglishName != "" {
			tw.TextBlock(2, "english", e.EnglishName)
		}
		tw.Line(2, "shapes: para %d, char %d", e.ParaShapeID, e.CharShapeID)
		a := e.Attributes
		tw.TextBlock(2, "font", a.Font)
		tw.Line(2, "size: %gpt, width: %d%%, spacing: %d%%", a.SizePt, a.WidthPercent, a.CharSpacingPercent)
		if a.PercentSpacing {
			tw.Line(2, "line spacing: %d%%, indent: %gpt", a.LineSpacingPercent, a.IndentPt)
		} else {
			tw.Line(2, "line spacing: fixed, indent: %gpt", a.IndentPt)
		}
	}
	return tw.String()
}
