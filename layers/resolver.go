package layers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store locates configuration layers on disk.
type Store struct {
	// base layer file, embedded defaults are used when it does not exist
	BasePath     string
	UserPath     string
	PresetsDir   string
	TemplatesDir string
	// directory relative template paths are resolved against
	Root string
}

// Base loads base layer.
func (s Store) Base() (Layer, error) {
	if s.BasePath == "" {
		return DefaultBase(), nil
	}
	if _, err := os.Stat(s.BasePath); errors.Is(err, fs.ErrNotExist) {
		return DefaultBase(), nil
	}
	return LoadLayer(LayerBase, s.BasePath)
}

// User loads user layer.
func (s Store) User() (Layer, error) {
	if s.UserPath == "" {
		return Layer{Name: LayerUser, Root: EmptyMap()}, nil
	}
	return LoadLayer(LayerUser, s.UserPath)
}

// Preset loads preset by its identity (file name).
func (s Store) Preset(id string) (*Preset, error) {
	if id != filepath.Base(id) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: bad preset identity '%s'", ErrPresetNotFound, id)
	}
	if filepath.Ext(id) == "" {
		for _, ext := range presetExtensions {
			if _, err := os.Stat(filepath.Join(s.PresetsDir, id+ext)); err == nil {
				id += ext
				break
			}
		}
	}
	return LoadPreset(filepath.Join(s.PresetsDir, id))
}

// Presets lists available presets.
func (s Store) Presets() ([]*Preset, error) {
	return ListPresets(s.PresetsDir)
}

// UpdateUser merges partial document into user layer file.
func (s Store) UpdateUser(partial Value) error {
	if s.UserPath == "" {
		return errors.New("user layer location is not configured")
	}
	user, err := s.User()
	if err != nil {
		return err
	}
	return SaveLayer(s.UserPath, Merge(user.Root, ExpandDotted(partial)))
}

// ResolveTemplate turns configured template path into a file path. Relative
// paths are resolved against store root. When absolute path does not exist
// (configuration moved between machines) file with the same name is looked
// up in templates directory. Second value reports such recovery.
func (s Store) ResolveTemplate(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	if !filepath.IsAbs(path) && !isForeignAbs(path) {
		return filepath.Join(s.Root, filepath.FromSlash(path)), false
	}
	if _, err := os.Stat(path); err == nil || s.TemplatesDir == "" {
		return path, false
	}
	candidate := filepath.Join(s.TemplatesDir, baseName(path))
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}
	return path, false
}

// isForeignAbs detects absolute paths written on another platform.
func isForeignAbs(path string) bool {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\\`) {
		return true
	}
	return len(path) > 2 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Resolver produces profiles from the store and remembers preset used by the
// last successful resolution. Preset is always passed explicitly, remembered
// value is for recall only.
type Resolver struct {
	store Store
	log   *zap.Logger

	mu   sync.Mutex
	last string
}

func NewResolver(store Store, log *zap.Logger) *Resolver {
	return &Resolver{store: store, log: log.Named("layers")}
}

func (r *Resolver) Store() Store {
	return r.store
}

// Resolve loads layers and merges them. Empty preset identity means two
// layer configuration.
func (r *Resolver) Resolve(presetID string) (*Profile, error) {
	base, err := r.store.Base()
	if err != nil {
		return nil, err
	}
	user, err := r.store.User()
	if err != nil {
		return nil, err
	}
	var preset *Preset
	if presetID != "" {
		if preset, err = r.store.Preset(presetID); err != nil {
			return nil, err
		}
	}

	p, err := Resolve(base, preset, user)
	if err != nil {
		return nil, err
	}
	for _, w := range p.Drift {
		r.log.Warn("Configuration drift", zap.String("preset", presetID), zap.Stringer("warning", w))
	}

	if p.Style.TemplatePath != "" {
		resolved, recovered := r.store.ResolveTemplate(p.Style.TemplatePath)
		if recovered {
			r.log.Info("Template path recovered", zap.String("configured", p.Style.TemplatePath), zap.String("actual", resolved))
		}
		p.Style.TemplatePath = resolved
	}

	r.mu.Lock()
	r.last = p.PresetFile()
	r.mu.Unlock()

	r.log.Debug("Profile resolved", zap.String("preset", p.PresetFile()), zap.Stringer("profile", p.Root))
	return p, nil
}

// LastPreset returns identity of preset used by the last successful
// resolution, empty when none was used.
func (r *Resolver) LastPreset() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
