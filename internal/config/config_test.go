package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsFromMinimalYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitepipe.yaml")
	writeFile(t, path, "site:\n  dir: public\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "public", cfg.Site.Dir)
	assert.Equal(t, "jekyll", cfg.Generator.Command)
	assert.Equal(t, "jekyll.bat", cfg.Generator.WindowsCommand)
	assert.True(t, BoolOr(cfg.Generator.Incremental, false))
	assert.Equal(t, "stylus", cfg.Styles.Command)
	assert.Equal(t, []string{"public/assets/css", "assets/css"}, cfg.Styles.Dest)
	assert.Equal(t, []string{"assets/js", "public/assets/js"}, cfg.Scripts.Dest)
	assert.Equal(t, []string{"src/img/**/*.{jpg,png,gif}"}, cfg.Images.Sources)
	assert.Equal(t, 3000, cfg.Server.Port)
	require.Len(t, cfg.Watch.Rules, 4)
	assert.Equal(t, "site-rebuild", cfg.Watch.Rules[3].Task)
	assert.Equal(t, filepath.Join(dir, "assets", "css"), cfg.Path("assets/css"))
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load(DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, "_site", cfg.Site.Dir)
	assert.NotEmpty(t, cfg.Root)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "custom.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_MissingFileNamedLikeDefaultOutsideCwd(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "other", DefaultFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_EnvExpansionAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "SITEPIPE_TEST_PORT=4123\n")
	path := filepath.Join(dir, "sitepipe.yaml")
	writeFile(t, path, "server:\n  port: ${SITEPIPE_TEST_PORT}\n")
	t.Cleanup(func() { _ = os.Unsetenv("SITEPIPE_TEST_PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4123, cfg.Server.Port)
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitepipe.toml")
	writeFile(t, path, `
[generator]
command = "bundle-jekyll"
strict = true

[watch]
debounce = "250ms"

[[watch.rules]]
globs = ["content/**/*.md"]
task = "site-rebuild"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bundle-jekyll", cfg.Generator.Command)
	assert.True(t, cfg.Generator.Strict)
	require.Len(t, cfg.Watch.Rules, 1)
	assert.Equal(t, []string{"content/**/*.md"}, cfg.Watch.Rules[0].Globs)
	d, err := cfg.Watch.DebounceDuration()
	require.NoError(t, err)
	assert.Equal(t, "250ms", d.String())
}

func TestStylesDefaults_PlainCSSEntryKeepsNoCommand(t *testing.T) {
	cfg := &Config{Styles: StylesConfig{Entry: "css/site.css"}}
	require.NoError(t, ApplyDefaults(cfg))
	assert.Empty(t, cfg.Styles.Command)
	assert.Empty(t, cfg.Styles.Args)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }, "must not be negative"},
		{"rule without task", func(c *Config) { c.Watch.Rules = []WatchRule{{Globs: []string{"*.html"}}} }, "task is required"},
		{"rule without globs", func(c *Config) { c.Watch.Rules = []WatchRule{{Task: "styles"}} }, "at least one glob"},
		{"empty glob", func(c *Config) { c.Scripts.Sources = []string{""} }, "empty glob"},
		{"bad constraint", func(c *Config) { c.Generator.VersionConstraint = "not-a-version" }, "version_constraint"},
		{"bad quality", func(c *Config) { c.Images.JPEGQuality = 101 }, "jpeg_quality"},
		{"drafts in generator args", func(c *Config) { c.Generator.Args = []string{"--trace", "--drafts"} }, "must not contain --drafts"},
		{"incremental in generator args", func(c *Config) { c.Generator.Args = []string{"--incremental"} }, "must not contain --incremental"},
		{"watch short flag in generator args", func(c *Config) { c.Generator.Args = []string{"-w"} }, "must not contain -w"},
		{"other generator args are fine", func(c *Config) { c.Generator.Args = []string{"--trace", "--future"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Root: t.TempDir()}
			require.NoError(t, ApplyDefaults(cfg))
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
