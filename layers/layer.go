package layers

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Names of configuration layers in precedence order.
const (
	LayerBase   = "base"
	LayerPreset = "preset"
	LayerUser   = "user"
)

//go:embed default_config.json
var defaultConfig []byte

// Layer is one loaded configuration document. Layers are never modified
// after loading.
type Layer struct {
	Name string
	// file layer was loaded from, empty for built in and in-memory layers
	Source string
	Root   Value
}

// NewLayer creates in-memory layer, dotted keys are expanded.
func NewLayer(name string, root Value) Layer {
	if !root.IsMap() {
		root = EmptyMap()
	}
	return Layer{Name: name, Root: ExpandDotted(root)}
}

// DefaultBase returns built in base layer.
func DefaultBase() Layer {
	v, err := Parse(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("bad embedded default configuration: %v", err))
	}
	return NewLayer(LayerBase, v)
}

// DefaultConfig returns content of built in base layer.
func DefaultConfig() []byte {
	return append([]byte(nil), defaultConfig...)
}

// LoadLayer reads layer from file. Missing file produces an empty layer.
func LoadLayer(name, path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Layer{Name: name, Source: path, Root: EmptyMap()}, nil
		}
		return Layer{}, fmt.Errorf("unable to read %s layer: %w", name, err)
	}
	v, err := Parse(data)
	if err != nil {
		return Layer{}, fmt.Errorf("unable to parse %s layer '%s': %w", name, path, err)
	}
	if !v.IsMap() {
		return Layer{}, fmt.Errorf("%s layer '%s' must be a map, got %s", name, path, v.Kind())
	}
	l := NewLayer(name, v)
	l.Source = path
	return l, nil
}

// SaveLayer atomically writes value as indented JSON.
func SaveLayer(path string, v Value) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	data, err = indentJSON(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create directory for '%s': %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

func indentJSON(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
