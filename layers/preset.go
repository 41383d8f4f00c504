package layers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// ErrPresetNotFound is returned when preset file does not exist.
var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named formatting layer bound to a style template. Its identity
// is the file name.
type Preset struct {
	File         string
	Name         string
	Description  string
	TemplatePath string
	Layer        Layer
}

var presetExtensions = []string{".json", ".yaml", ".yml"}

// metadata keys, second spelling is accepted for older preset files
var (
	presetNameKeys        = []string{"presetName", "preset_name"}
	presetDescriptionKeys = []string{"presetDescription", "preset_description"}
)

// LoadPreset reads preset from file.
func LoadPreset(path string) (*Preset, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, filepath.Base(path))
		}
		return nil, err
	}
	l, err := LoadLayer(LayerPreset, path)
	if err != nil {
		return nil, err
	}
	return newPreset(filepath.Base(path), l), nil
}

// NewPreset creates preset from in-memory document.
func NewPreset(file string, root Value) *Preset {
	return newPreset(file, NewLayer(LayerPreset, root))
}

func newPreset(file string, l Layer) *Preset {
	p := &Preset{File: file, Name: strings.TrimSuffix(file, filepath.Ext(file))}

	root := l.Root
	for _, k := range presetNameKeys {
		if v, ok := root.Field(k); ok {
			if s, ok := v.AsString(); ok && s != "" {
				p.Name = s
			}
			root = root.Without(k)
		}
	}
	for _, k := range presetDescriptionKeys {
		if v, ok := root.Field(k); ok {
			if s, ok := v.AsString(); ok {
				p.Description = s
			}
			root = root.Without(k)
		}
	}
	// top level alias
	if v, ok := root.Field("templatePath"); ok {
		if _, defined := root.Lookup(KeyTemplatePath); !defined {
			root = root.Set(KeyTemplatePath, v)
		}
		root = root.Without("templatePath")
	}
	if v, ok := root.Lookup(KeyTemplatePath); ok {
		p.TemplatePath, _ = v.AsString()
	}
	l.Root = root
	p.Layer = l
	return p
}

// ListPresets returns presets found in directory in natural order of file
// names. Missing directory is not an error.
func ListPresets(dir string) ([]*Preset, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to list presets: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsPresetFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})

	presets := make([]*Preset, 0, len(names))
	for _, n := range names {
		p, err := LoadPreset(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// IsPresetFile reports file names with supported extensions.
func IsPresetFile(name string) bool {
	return slices.Contains(presetExtensions, strings.ToLower(filepath.Ext(name)))
}
