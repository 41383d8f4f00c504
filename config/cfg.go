package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"exgen/layers"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	LayersConfig struct {
		// directory relative paths of this section and of profile template
		// paths are resolved against
		Root         string `yaml:"root" sanitize:"path_clean" validate:"required"`
		Base         string `yaml:"base" sanitize:"path_clean" validate:"required"`
		User         string `yaml:"user" sanitize:"path_clean"`
		PresetsDir   string `yaml:"presets_dir" sanitize:"path_clean" validate:"required"`
		TemplatesDir string `yaml:"templates_dir" sanitize:"path_clean"`
	}

	GenerationConfig struct {
		OutputDir             string   `yaml:"output_dir" sanitize:"path_clean"`
		OutputNameTemplate    string   `yaml:"output_name_template"`
		FileNameTransliterate bool     `yaml:"file_name_transliterate"`
		Workers               int      `yaml:"workers" validate:"min=1,max=64"`
		StrictConsistency     bool     `yaml:"strict_consistency"`
		TextFallback          bool     `yaml:"text_fallback"`
		TransplantStyles      bool     `yaml:"transplant_styles"`
		Sheets                []string `yaml:"sheets" validate:"dive,oneof=question explanation"`
		DefaultTemplate       string   `yaml:"default_template" sanitize:"assure_file_access"`
	}

	JournalConfig struct {
		Enable      bool   `yaml:"enable"`
		Path        string `yaml:"path" sanitize:"path_clean" validate:"required_if=Enable true"`
		CacheStyles bool   `yaml:"cache_styles"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Layers     LayersConfig     `yaml:"layers"`
		Generation GenerationConfig `yaml:"generation"`
		Journal    JournalConfig    `yaml:"journal"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// resolve makes path absolute using root directory.
func (conf *LayersConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(conf.Root, path)
}

// Store returns location of configuration layers.
func (conf *LayersConfig) Store() layers.Store {
	root := conf.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c := *conf
	c.Root = root
	return layers.Store{
		BasePath:     c.resolve(c.Base),
		UserPath:     c.resolve(c.User),
		PresetsDir:   c.resolve(c.PresetsDir),
		TemplatesDir: c.resolve(c.TemplatesDir),
		Root:         root,
	}
}

// DefaultTemplatePath returns location built in template is written to when
// configuration does not name a template.
func (conf *Config) DefaultTemplatePath() string {
	if conf.Generation.DefaultTemplate != "" {
		return conf.Generation.DefaultTemplate
	}
	dir := conf.Layers.Store().TemplatesDir
	if dir == "" {
		dir = conf.Layers.Store().Root
	}
	return filepath.Join(dir, "default.hwp")
}
