package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/globs"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Images re-encodes raster images and keeps whichever of original and
// re-encoded bytes is smaller.
type Images struct {
	cfg     config.ImagesConfig
	root    string
	dests   []string
	quality int
	lossy   bool
	opts    options
}

// NewImages builds the image optimizer from cfg.
func NewImages(cfg *config.Config, opts ...Option) *Images {
	q := cfg.Images.JPEGQuality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}
	return &Images{
		cfg:     cfg.Images,
		root:    cfg.Root,
		dests:   cfg.Paths(cfg.Images.Dest),
		quality: q,
		lossy:   cfg.Images.Lossy,
		opts:    buildOptions(opts),
	}
}

// Name implements Compiler.
func (im *Images) Name() string { return "images" }

// Compile optimizes every matching image, writing it under each destination
// at its path relative to the configured base.
func (im *Images) Compile(ctx context.Context) (Result, error) {
	var res Result
	files, err := globs.Expand(im.root, im.cfg.Sources...)
	if err != nil {
		return res, ferrors.WrapError(err, ferrors.CategoryFileSystem, "expand image sources").Build()
	}
	if len(files) == 0 {
		im.opts.logger.Warn("No image sources matched", logfields.Glob(joinPatterns(im.cfg.Sources)))
	}

	failures := &fileFailures{compiler: im.Name(), logger: im.opts.logger}
	var saved int
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		orig, readErr := os.ReadFile(filepath.Join(im.root, filepath.FromSlash(rel)))
		if readErr != nil {
			failures.add(rel, readErr)
			continue
		}
		out, optErr := im.optimize(rel, orig)
		if optErr != nil {
			failures.add(rel, optErr)
			continue
		}
		outRel := im.outputPath(rel)
		written, writeErr := writeOutput(im.destDirs(outRel), path.Base(outRel), out, nil)
		res.Outputs = append(res.Outputs, written...)
		if writeErr != nil {
			failures.add(rel, writeErr)
			continue
		}
		saved += len(orig) - len(out)
		res.Bytes += len(out)
		res.Files++
	}
	res.Failed = failures.files
	im.opts.logger.Debug("Images optimized", logfields.Files(res.Files), slog.Int("saved_bytes", saved))
	return res, failures.err()
}

// optimize returns the smaller of the original bytes and their re-encoding.
// JPEGs are only re-encoded in lossy mode.
func (im *Images) optimize(rel string, orig []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(path.Ext(rel)) {
	case ".png":
		img, err := png.Decode(bytes.NewReader(orig))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(bytes.NewReader(orig))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		if !im.lossy {
			return orig, nil
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: im.quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case ".gif":
		anim, err := gif.DecodeAll(bytes.NewReader(orig))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		if err := gif.EncodeAll(&buf, anim); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	default:
		if _, _, err := image.DecodeConfig(bytes.NewReader(orig)); err != nil {
			return nil, fmt.Errorf("unsupported image %s: %w", rel, err)
		}
		return orig, nil
	}
	if buf.Len() >= len(orig) {
		return orig, nil
	}
	return buf.Bytes(), nil
}

// outputPath strips the configured base from rel.
func (im *Images) outputPath(rel string) string {
	base := strings.Trim(filepath.ToSlash(im.cfg.Base), "/")
	if base != "" && base != "." && strings.HasPrefix(rel, base+"/") {
		return strings.TrimPrefix(rel, base+"/")
	}
	return rel
}

func (im *Images) destDirs(outRel string) []string {
	sub := path.Dir(outRel)
	dirs := make([]string, 0, len(im.dests))
	for _, d := range im.dests {
		dirs = append(dirs, filepath.Join(d, filepath.FromSlash(sub)))
	}
	return dirs
}

func joinPatterns(patterns []string) string {
	return strings.Join(patterns, ",")
}
