package styles

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// built in names every document understands, seeded only when template does
// not define them itself
var builtinAliases = []struct {
	name  string
	index int
}{
	{"바탕글", 0},
	{"Normal", 0},
	{"본문", 1},
	{"Body", 1},
}

func normalize(name string) string {
	// casers keep state and can not be shared
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Map resolves style names to indices of the style table. Lookup is case
// insensitive and does not depend on Unicode normalization form of names.
type Map struct {
	names map[string]int
	// template defined names only, in original spelling
	defined map[string]int
	count   int
}

// Map builds name map of the directory.
func (d *Directory) Map() *Map {
	m := &Map{
		names:   make(map[string]int, 2*len(d.Entries)+len(builtinAliases)),
		defined: make(map[string]int, len(d.Entries)),
	}
	for _, e := range d.Entries {
		m.names[normalize(e.Name)] = e.Index
		m.defined[e.Name] = e.Index
		m.count = max(m.count, e.Index+1)
	}
	// english names never shadow korean ones
	for _, e := range d.Entries {
		if e.EnglishName == "" {
			continue
		}
		if k := normalize(e.EnglishName); k != "" {
			if _, ok := m.names[k]; !ok {
				m.names[k] = e.Index
			}
		}
	}
	for _, a := range builtinAliases {
		k := normalize(a.name)
		if _, ok := m.names[k]; !ok && a.index < m.count {
			m.names[k] = a.index
		}
	}
	return m
}

// Index resolves style name. Numeric names not defined by template are taken
// as indices.
func (m *Map) Index(name string) (int, bool) {
	k := normalize(name)
	if k == "" {
		return 0, false
	}
	if idx, ok := m.names[k]; ok {
		return idx, true
	}
	if n, err := strconv.Atoi(k); err == nil && n >= 0 && n < m.count {
		return n, true
	}
	return 0, false
}

// Defined returns style names of the template with their indices.
func (m *Map) Defined() map[string]int {
	return maps.Clone(m.defined)
}

// Names returns template defined names sorted by index.
func (m *Map) Names() []string {
	names := slices.Collect(maps.Keys(m.defined))
	slices.SortFunc(names, func(a, b string) int { return m.defined[a] - m.defined[b] })
	return names
}

// Len returns size of style table.
func (m *Map) Len() int {
	return m.count
}
