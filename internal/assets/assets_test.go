package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reloads int
	css     []string
}

func (n *recordingNotifier) Reload() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads++
}

func (n *recordingNotifier) InjectCSS(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.css = append(n.css, path)
}

func newProject(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{Root: t.TempDir()}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestStyles_PlainCSSWritesEveryDestination(t *testing.T) {
	cfg := newProject(t, func(c *config.Config) { c.Styles.Entry = "src/css/main.css" })
	writeFile(t, cfg.Root, "src/css/main.css", []byte("body {\n  color: #ff0000;\n}\n"))
	n := &recordingNotifier{}

	res, err := NewStyles(cfg, WithNotifier(n)).Compile(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Outputs, 2)
	site := readFile(t, cfg.Root, "_site/assets/css/main.css")
	assert.Equal(t, site, readFile(t, cfg.Root, "assets/css/main.css"))
	assert.Contains(t, site, "body{color:")
	assert.NotContains(t, site, "\n")
	assert.Equal(t, []string{"/assets/css/main.css"}, n.css)
	assert.Zero(t, n.reloads)
}

func TestStyles_ExternalCompiler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses cat as the stylesheet compiler")
	}
	off := false
	cfg := newProject(t, func(c *config.Config) {
		c.Styles.Entry = "src/styl/site.styl"
		c.Styles.Command = "cat"
		c.Styles.Compress = &off
	})
	writeFile(t, cfg.Root, "src/styl/site.styl", []byte("a { color: blue; }\n"))

	_, err := NewStyles(cfg).Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a { color: blue; }\n", readFile(t, cfg.Root, "assets/css/main.css"))
}

func TestStyles_CompilerFailureWritesNothing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses false as the stylesheet compiler")
	}
	cfg := newProject(t, func(c *config.Config) {
		c.Styles.Entry = "src/styl/site.styl"
		c.Styles.Command = "false"
	})
	writeFile(t, cfg.Root, "src/styl/site.styl", []byte("a { color: blue; }\n"))
	n := &recordingNotifier{}

	res, err := NewStyles(cfg, WithNotifier(n)).Compile(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCompile))
	assert.Equal(t, []string{"src/styl/site.styl"}, res.Failed)
	assert.Empty(t, n.css)
	_, statErr := os.Stat(filepath.Join(cfg.Root, "assets", "css", "main.css"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScripts_ConcatenatesInSortedOrder(t *testing.T) {
	off := false
	cfg := newProject(t, func(c *config.Config) { c.Scripts.Minify = &off })
	writeFile(t, cfg.Root, "src/js/b.js", []byte("var b = 2;"))
	writeFile(t, cfg.Root, "src/js/a.js", []byte("var a = 1;"))
	writeFile(t, cfg.Root, "src/js/vendor/c.js", []byte("var c = 3;"))
	writeFile(t, cfg.Root, "src/js/notes.txt", []byte("ignored"))
	n := &recordingNotifier{}

	res, err := NewScripts(cfg, WithNotifier(n)).Compile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Files)
	want := "var a = 1;\nvar b = 2;\nvar c = 3;"
	for _, dest := range []string{"assets/js/main.js", "_site/assets/js/main.js"} {
		assert.Equal(t, want, readFile(t, cfg.Root, dest), dest)
	}
	assert.Equal(t, 1, n.reloads)
}

func TestScripts_Minifies(t *testing.T) {
	cfg := newProject(t, nil)
	source := "function greet(name) {\n  return 'hello ' + name;\n}\n"
	writeFile(t, cfg.Root, "src/js/main.js", []byte(source))

	res, err := NewScripts(cfg).Compile(context.Background())
	require.NoError(t, err)

	out := readFile(t, cfg.Root, "assets/js/main.js")
	assert.Less(t, len(out), len(source))
	assert.Contains(t, out, "greet")
	assert.Equal(t, len(out), res.Bytes)
}

func TestScripts_NoSourcesKeepsExistingBundle(t *testing.T) {
	cfg := newProject(t, nil)
	writeFile(t, cfg.Root, "assets/js/main.js", []byte("var kept = 1;"))
	n := &recordingNotifier{}

	res, err := NewScripts(cfg, WithNotifier(n)).Compile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.Empty(t, res.Outputs)
	assert.Equal(t, "var kept = 1;", readFile(t, cfg.Root, "assets/js/main.js"))
	assert.NoFileExists(t, filepath.Join(cfg.Root, "_site", "assets", "js", "main.js"))
	assert.Zero(t, n.reloads)
}

func noisyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

func TestImages_OptimizesAndPreservesRelativePaths(t *testing.T) {
	cfg := newProject(t, nil)
	orig := noisyPNG(t)
	writeFile(t, cfg.Root, "src/img/sub/red.png", orig)

	res, err := NewImages(cfg).Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	out := readFile(t, cfg.Root, "assets/img/sub/red.png")
	assert.Less(t, len(out), len(orig))
	decoded, err := png.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestImages_PerFileFailuresDoNotStopThePass(t *testing.T) {
	cfg := newProject(t, nil)
	writeFile(t, cfg.Root, "src/img/broken.png", []byte("not a png"))
	writeFile(t, cfg.Root, "src/img/ok.png", noisyPNG(t))

	res, err := NewImages(cfg).Compile(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCompile))
	assert.Equal(t, []string{"src/img/broken.png"}, res.Failed)
	assert.Equal(t, 1, res.Files)
	assert.FileExists(t, filepath.Join(cfg.Root, "assets", "img", "ok.png"))
	assert.NoFileExists(t, filepath.Join(cfg.Root, "assets", "img", "broken.png"))
}

func TestImages_KeepsOriginalWhenAlreadySmaller(t *testing.T) {
	cfg := newProject(t, nil)
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img))
	writeFile(t, cfg.Root, "src/img/tiny.png", buf.Bytes())

	_, err := NewImages(cfg).Compile(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(readFile(t, cfg.Root, "assets/img/tiny.png")), buf.Len())
}

func gradientJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for x := 0; x < 96; x++ {
		for y := 0; y < 96; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8((x ^ y) * 3), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

func animatedGIF(t *testing.T, frames int) []byte {
	t.Helper()
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 16, 16), palette.Plan9)
		for x := 0; x < 16; x++ {
			frame.SetColorIndex(x, i, uint8(i*40+x))
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	return buf.Bytes()
}

func TestImages_Formats(t *testing.T) {
	photo := gradientJPEG(t)
	anim := animatedGIF(t, 3)

	tests := []struct {
		name  string
		rel   string
		data  []byte
		lossy bool
		check func(t *testing.T, out []byte)
	}{
		{
			name: "jpeg kept byte for byte by default",
			rel:  "photo.jpg",
			data: photo,
			check: func(t *testing.T, out []byte) {
				assert.Equal(t, photo, out)
			},
		},
		{
			name:  "jpeg re-encoded in lossy mode",
			rel:   "photo.jpg",
			data:  photo,
			lossy: true,
			check: func(t *testing.T, out []byte) {
				assert.Less(t, len(out), len(photo))
				decoded, err := jpeg.Decode(bytes.NewReader(out))
				require.NoError(t, err)
				assert.Equal(t, 96, decoded.Bounds().Dx())
			},
		},
		{
			name: "animated gif keeps every frame",
			rel:  "anim/spinner.gif",
			data: anim,
			check: func(t *testing.T, out []byte) {
				assert.LessOrEqual(t, len(out), len(anim))
				decoded, err := gif.DecodeAll(bytes.NewReader(out))
				require.NoError(t, err)
				assert.Len(t, decoded.Image, 3)
				assert.Equal(t, []int{10, 10, 10}, decoded.Delay)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t, func(c *config.Config) {
				c.Images.Lossy = tt.lossy
				c.Images.JPEGQuality = 50
			})
			writeFile(t, cfg.Root, "src/img/"+tt.rel, tt.data)

			res, err := NewImages(cfg).Compile(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, res.Files)
			tt.check(t, []byte(readFile(t, cfg.Root, "assets/img/"+tt.rel)))
		})
	}
}
