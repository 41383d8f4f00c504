package native

import (
	"strings"

	"exgen/hwp"
)

// registry tracks shapes and fonts of document information and the ones
// session adds. Identical shapes are registered once.
type registry struct {
	// existing face names per language group
	faces    [hwp.LanguageCount][]string
	newFaces [hwp.LanguageCount][]string

	charIDs   map[string]uint16
	charCount int
	newChars  [][]byte

	paraIDs   map[string]uint16
	paraCount int
	newParas  [][]byte
}

func newRegistry(info *hwp.DocInfo) *registry {
	r := &registry{
		charIDs:   make(map[string]uint16),
		paraIDs:   make(map[string]uint16),
		charCount: len(info.CharShapes),
		paraCount: len(info.ParaShapes),
	}
	for g := range hwp.LanguageCount {
		for id := range int(info.IDMappings[hwp.IDFontHangul+g]) {
			name, _ := info.Face(g, uint16(id))
			r.faces[g] = append(r.faces[g], name)
		}
	}
	var chars, paras int
	for _, rec := range info.Records {
		switch rec.Tag {
		case hwp.TagCharShape:
			if _, ok := r.charIDs[string(rec.Data)]; !ok {
				r.charIDs[string(rec.Data)] = uint16(chars)
			}
			chars++
		case hwp.TagParaShape:
			if _, ok := r.paraIDs[string(rec.Data)]; !ok {
				r.paraIDs[string(rec.Data)] = uint16(paras)
			}
			paras++
		}
	}
	return r
}

// face returns id of the font in language group, adding it when necessary.
func (r *registry) face(group int, name string) uint16 {
	name = strings.TrimSpace(name)
	for i, n := range r.faces[group] {
		if n == name {
			return uint16(i)
		}
	}
	for i, n := range r.newFaces[group] {
		if n == name {
			return uint16(len(r.faces[group]) + i)
		}
	}
	r.newFaces[group] = append(r.newFaces[group], name)
	return uint16(len(r.faces[group]) + len(r.newFaces[group]) - 1)
}

func (r *registry) charShape(c hwp.CharShape) uint16 {
	data := c.Encode()
	if id, ok := r.charIDs[string(data)]; ok {
		return id
	}
	id := uint16(r.charCount + len(r.newChars))
	r.charIDs[string(data)] = id
	r.newChars = append(r.newChars, data)
	return id
}

func (r *registry) paraShape(p hwp.ParaShape) uint16 {
	data := p.Encode()
	if id, ok := r.paraIDs[string(data)]; ok {
		return id
	}
	id := uint16(r.paraCount + len(r.newParas))
	r.paraIDs[string(data)] = id
	r.newParas = append(r.newParas, data)
	return id
}

// docInfo re-encodes document information with added records. Records of
// every extended kind are written as one contiguous block at the position of
// the first original record of that kind, kinds template does not have at
// all go before the first record with a bigger tag.
func (r *registry) docInfo(info *hwp.DocInfo, sections int) []byte {
	ids := info.IDMappings
	for g := range hwp.LanguageCount {
		ids[hwp.IDFontHangul+g] += int32(len(r.newFaces[g]))
	}
	ids[hwp.IDCharShape] += int32(len(r.newChars))
	ids[hwp.IDParaShape] += int32(len(r.newParas))

	blocks := map[uint16][][]byte{
		hwp.TagFaceName:  r.faceRecords(info),
		hwp.TagCharShape: r.collect(info, hwp.TagCharShape, r.newChars),
		hwp.TagParaShape: r.collect(info, hwp.TagParaShape, r.newParas),
	}
	order := []uint16{hwp.TagFaceName, hwp.TagCharShape, hwp.TagParaShape}
	present := make(map[uint16]bool)
	for _, rec := range info.Records {
		present[rec.Tag] = true
	}
	written := make(map[uint16]bool)

	var out []byte
	emit := func(tag, level uint16) {
		for _, data := range blocks[tag] {
			out = hwp.AppendRecord(out, tag, level, data)
		}
		written[tag] = true
	}
	for _, rec := range info.Records {
		if _, ok := blocks[rec.Tag]; ok {
			if !written[rec.Tag] {
				emit(rec.Tag, rec.Level)
			}
			continue
		}
		if rec.Level == 1 {
			for _, tag := range order {
				if !present[tag] && !written[tag] && tag < rec.Tag && rec.Tag > hwp.TagIDMappings {
					emit(tag, 1)
				}
			}
		}
		data := rec.Data
		switch rec.Tag {
		case hwp.TagIDMappings:
			data = ids.Encode(rec.Data)
		case hwp.TagDocumentProperties:
			if len(data) >= 2 {
				data = append([]byte(nil), data...)
				data[0], data[1] = byte(sections), byte(sections>>8)
			}
		}
		out = hwp.AppendRecord(out, rec.Tag, rec.Level, data)
	}
	for _, tag := range order {
		if !written[tag] {
			emit(tag, 1)
		}
	}
	return out
}

func (r *registry) collect(info *hwp.DocInfo, tag uint16, added [][]byte) [][]byte {
	var out [][]byte
	for _, rec := range info.Records {
		if rec.Tag == tag {
			out = append(out, rec.Data)
		}
	}
	return append(out, added...)
}

// faceRecords returns face records grouped by language with added fonts at
// the end of every group.
func (r *registry) faceRecords(info *hwp.DocInfo) [][]byte {
	var existing [][]byte
	for _, rec := range info.Records {
		if rec.Tag == hwp.TagFaceName {
			existing = append(existing, rec.Data)
		}
	}
	var out [][]byte
	start := 0
	for g := range hwp.LanguageCount {
		n := len(r.faces[g])
		out = append(out, existing[start:start+n]...)
		start += n
		for _, name := range r.newFaces[g] {
			out = append(out, hwp.FaceName{Name: name}.Encode())
		}
	}
	return out
}
