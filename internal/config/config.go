package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "sitepipe.yaml"

// Config represents the pipeline configuration.
type Config struct {
	// Root is the project directory every relative path resolves against.
	// Defaults to the directory holding the configuration file.
	Root      string          `yaml:"root,omitempty" toml:"root"`
	Site      SiteConfig      `yaml:"site" toml:"site"`
	Generator GeneratorConfig `yaml:"generator" toml:"generator"`
	Styles    StylesConfig    `yaml:"styles" toml:"styles"`
	Scripts   ScriptsConfig   `yaml:"scripts" toml:"scripts"`
	Images    ImagesConfig    `yaml:"images" toml:"images"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	// Strict stops an invocation at the first failing asset compiler. By
	// default the failure is reported and the remaining tasks still run.
	Strict    bool            `yaml:"strict" toml:"strict"`
}

// SiteConfig describes the generated site.
type SiteConfig struct {
	Dir string `yaml:"dir" toml:"dir"` // generator output, served by the dev server
}

// GeneratorConfig configures the external static site generator.
type GeneratorConfig struct {
	Command        string   `yaml:"command" toml:"command"`
	WindowsCommand string   `yaml:"windows_command" toml:"windows_command"`
	Args           []string `yaml:"args,omitempty" toml:"args"` // appended after the built-in flags
	Incremental    *bool    `yaml:"incremental,omitempty" toml:"incremental"`
	Watch          bool     `yaml:"watch" toml:"watch"`
	// Strict turns a non-zero generator exit into a task failure.
	Strict            bool   `yaml:"strict" toml:"strict"`
	VersionConstraint string `yaml:"version_constraint,omitempty" toml:"version_constraint"`
}

// StylesConfig configures the stylesheet compiler.
type StylesConfig struct {
	Entry    string   `yaml:"entry" toml:"entry"`
	Command  string   `yaml:"command" toml:"command"` // empty: entry is plain CSS
	Args     []string `yaml:"args" toml:"args"`
	Output   string   `yaml:"output" toml:"output"`
	Dest     []string `yaml:"dest" toml:"dest"`
	Compress *bool    `yaml:"compress,omitempty" toml:"compress"`
}

// ScriptsConfig configures the script bundler.
type ScriptsConfig struct {
	Sources []string `yaml:"sources" toml:"sources"`
	Output  string   `yaml:"output" toml:"output"`
	Dest    []string `yaml:"dest" toml:"dest"`
	Minify  *bool    `yaml:"minify,omitempty" toml:"minify"`
}

// ImagesConfig configures the image optimizer.
type ImagesConfig struct {
	Sources     []string `yaml:"sources" toml:"sources"`
	Base        string   `yaml:"base" toml:"base"` // stripped from source paths to build output paths
	Dest        []string `yaml:"dest" toml:"dest"`
	// Lossy re-encodes JPEGs at JPEGQuality. Otherwise JPEG bytes are kept as is.
	Lossy       bool     `yaml:"lossy" toml:"lossy"`
	JPEGQuality int      `yaml:"jpeg_quality" toml:"jpeg_quality"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	LiveReload *bool  `yaml:"live_reload,omitempty" toml:"live_reload"`
	Metrics    *bool  `yaml:"metrics,omitempty" toml:"metrics"`
}

// WatchConfig configures the watch orchestrator.
type WatchConfig struct {
	// Debounce is a Go duration; "0" or empty disables debouncing.
	Debounce string      `yaml:"debounce,omitempty" toml:"debounce"`
	Ignore   []string    `yaml:"ignore,omitempty" toml:"ignore"`
	Rules    []WatchRule `yaml:"rules" toml:"rules"`
}

// WatchRule maps source globs to the task re-run when one of them changes.
type WatchRule struct {
	Globs []string `yaml:"globs" toml:"globs"`
	Task  string   `yaml:"task" toml:"task"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables history
}

// Load reads the configuration at configPath. A missing DefaultFile (given
// exactly as DefaultFile) yields the defaults rooted at the working directory;
// any other missing path is an error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && configPath == DefaultFile:
		cwd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, fmt.Errorf("resolve working directory: %w", wdErr)
		}
		cfg := &Config{Root: cwd}
		if err := ApplyDefaults(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(configPath, data)
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = filepath.Dir(configPath)
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(configPath), cfg.Root)
	}
	if abs, absErr := filepath.Abs(cfg.Root); absErr == nil {
		cfg.Root = abs
	}
	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration content; the decoder is chosen by name's extension.
// Environment variables are expanded before decoding.
func Parse(name string, data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	var cfg Config
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	return &cfg, nil
}

// Path resolves a project-relative path against Root.
func (c *Config) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// Paths resolves each project-relative path against Root.
func (c *Config) Paths(rels []string) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, c.Path(r))
	}
	return out
}

// BoolOr returns *p, or def when p is nil.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// loadEnvFiles loads .env and .env.local from dir without overriding the process environment.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", path, err)
		}
	}
}
