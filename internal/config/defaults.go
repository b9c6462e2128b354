package config

import "fmt"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

var defaultAppliers = []DefaultApplier{
	&SiteDefaultApplier{},
	&GeneratorDefaultApplier{},
	&StylesDefaultApplier{},
	&ScriptsDefaultApplier{},
	&ImagesDefaultApplier{},
	&ServerDefaultApplier{},
	&WatchDefaultApplier{},
	&HistoryDefaultApplier{},
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("apply %s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

// SiteDefaultApplier handles Site configuration defaults.
type SiteDefaultApplier struct{}

func (s *SiteDefaultApplier) Domain() string { return "site" }

func (s *SiteDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Site.Dir == "" {
		cfg.Site.Dir = "_site"
	}
	return nil
}

// GeneratorDefaultApplier handles Generator configuration defaults.
type GeneratorDefaultApplier struct{}

func (g *GeneratorDefaultApplier) Domain() string { return "generator" }

func (g *GeneratorDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Generator.Command == "" {
		cfg.Generator.Command = "jekyll"
	}
	if cfg.Generator.WindowsCommand == "" {
		cfg.Generator.WindowsCommand = cfg.Generator.Command + ".bat"
	}
	if cfg.Generator.Incremental == nil {
		on := true
		cfg.Generator.Incremental = &on
	}
	return nil
}

// StylesDefaultApplier handles Styles configuration defaults.
type StylesDefaultApplier struct{}

func (s *StylesDefaultApplier) Domain() string { return "styles" }

func (s *StylesDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Styles.Entry == "" {
		cfg.Styles.Entry = "src/styl/main.styl"
	}
	// An explicit entry without a command is plain CSS; only the stock layout gets stylus.
	if cfg.Styles.Command == "" && cfg.Styles.Args == nil && cfg.Styles.Entry == "src/styl/main.styl" {
		cfg.Styles.Command = "stylus"
		cfg.Styles.Args = []string{
			"--use", "kouto-swiss",
			"--use", "autoprefixer-stylus",
			"--use", "jeet",
			"--use", "rupture",
			"--print",
		}
	}
	if cfg.Styles.Output == "" {
		cfg.Styles.Output = "main.css"
	}
	if len(cfg.Styles.Dest) == 0 {
		cfg.Styles.Dest = []string{cfg.Site.Dir + "/assets/css", "assets/css"}
	}
	if cfg.Styles.Compress == nil {
		on := true
		cfg.Styles.Compress = &on
	}
	return nil
}

// ScriptsDefaultApplier handles Scripts configuration defaults.
type ScriptsDefaultApplier struct{}

func (s *ScriptsDefaultApplier) Domain() string { return "scripts" }

func (s *ScriptsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Scripts.Sources) == 0 {
		cfg.Scripts.Sources = []string{"src/js/**/*.js"}
	}
	if cfg.Scripts.Output == "" {
		cfg.Scripts.Output = "main.js"
	}
	if len(cfg.Scripts.Dest) == 0 {
		cfg.Scripts.Dest = []string{"assets/js", cfg.Site.Dir + "/assets/js"}
	}
	if cfg.Scripts.Minify == nil {
		on := true
		cfg.Scripts.Minify = &on
	}
	return nil
}

// ImagesDefaultApplier handles Images configuration defaults.
type ImagesDefaultApplier struct{}

func (i *ImagesDefaultApplier) Domain() string { return "images" }

func (i *ImagesDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Images.Sources) == 0 {
		cfg.Images.Sources = []string{"src/img/**/*.{jpg,png,gif}"}
	}
	if cfg.Images.Base == "" {
		cfg.Images.Base = "src/img"
	}
	if len(cfg.Images.Dest) == 0 {
		cfg.Images.Dest = []string{"assets/img"}
	}
	if cfg.Images.JPEGQuality == 0 {
		cfg.Images.JPEGQuality = 85
	}
	return nil
}

// ServerDefaultApplier handles Server configuration defaults.
type ServerDefaultApplier struct{}

func (s *ServerDefaultApplier) Domain() string { return "server" }

func (s *ServerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.LiveReload == nil {
		on := true
		cfg.Server.LiveReload = &on
	}
	if cfg.Server.Metrics == nil {
		on := true
		cfg.Server.Metrics = &on
	}
	return nil
}

// WatchDefaultApplier handles Watch configuration defaults.
type WatchDefaultApplier struct{}

func (w *WatchDefaultApplier) Domain() string { return "watch" }

func (w *WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Watch.Rules) == 0 {
		cfg.Watch.Rules = []WatchRule{
			{Globs: []string{"src/styl/**/*.styl"}, Task: "styles"},
			{Globs: []string{"src/js/**/*.js"}, Task: "scripts"},
			{Globs: []string{"src/img/**/*.{jpg,png,gif}"}, Task: "images"},
			{Globs: []string{"*.html", "_includes/*.html", "_layouts/*.html", "_posts/*", "_drafts/*"}, Task: "site-rebuild"},
		}
	}
	return nil
}

// HistoryDefaultApplier handles History configuration defaults.
type HistoryDefaultApplier struct{}

func (h *HistoryDefaultApplier) Domain() string { return "history" }

func (h *HistoryDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		cfg.History.Path = ".sitepipe/history.db"
	}
	return nil
}
