package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepipe/internal/config"
)

func TestFiles(t *testing.T) {
	assert.Equal(t, []string{"sitepipe.yaml", "src/js/main.js", "src/styl/main.styl"}, Files())
}

func TestWrite_CreatesLoadableProject(t *testing.T) {
	root := t.TempDir()

	written, err := Write(root, false)
	require.NoError(t, err)
	assert.Equal(t, Files(), written)
	assert.DirExists(t, filepath.Join(root, "_posts"))
	assert.DirExists(t, filepath.Join(root, "src", "img"))

	cfg, err := config.Load(filepath.Join(root, config.DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, "stylus", cfg.Styles.Command)
	assert.Len(t, cfg.Watch.Rules, 4)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestWrite_RefusesToOverwrite(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "sitepipe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("site:\n  dir: public\n"), 0o600))

	_, err := Write(root, false)
	require.ErrorIs(t, err, ErrExists)
	assert.Contains(t, err.Error(), "sitepipe.yaml")
	data, _ := os.ReadFile(cfgPath)
	assert.Equal(t, "site:\n  dir: public\n", string(data))
	assert.NoFileExists(t, filepath.Join(root, "src", "js", "main.js"))

	_, err = Write(root, true)
	require.NoError(t, err)
	data, _ = os.ReadFile(cfgPath)
	assert.Contains(t, string(data), "generator:")
}
