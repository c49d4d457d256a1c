package kiln

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chai2010/webp"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	xdraw "golang.org/x/image/draw"
)

// errUnsupportedFormat marks an encountered-but-unsupported image
// extension. It becomes a warning, not an error record.
var errUnsupportedFormat = errors.New("unsupported image format")

// Extensions the image pass discovers. Anything outside supportedRaster
// and .svg is carried to the warning path.
var imageExts = []string{".jpg", ".jpeg", ".png", ".svg", ".gif", ".bmp", ".tiff", ".webp", ".avif"}

var supportedRaster = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

var svgMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}()

// transformImage optimizes one image file and returns the produced assets.
func (p *Pipeline) transformImage(src string) ([]Asset, error) {
	ext := strings.ToLower(filepath.Ext(src))
	switch {
	case ext == ".svg":
		return p.optimizeSVG(src)
	case supportedRaster[ext]:
		return p.optimizeRaster(src, ext)
	default:
		return nil, errUnsupportedFormat
	}
}

// optimizeSVG strips unused namespace declarations and minifies the
// document. The viewBox attribute is left untouched so intrinsic sizing
// survives.
func (p *Pipeline) optimizeSVG(src string) ([]Asset, error) {
	in, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read svg: %w", err)
	}
	cleaned := stripUnusedNamespaces(in)
	out, err := svgMinifier.Bytes("image/svg+xml", cleaned)
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	dst, err := p.outPath(src)
	if err != nil {
		return nil, err
	}
	a, err := p.writeAsset(dst, out, KindImage, src)
	if err != nil {
		return nil, err
	}
	return []Asset{a}, nil
}

var reXMLNS = regexp.MustCompile(`\s+xmlns:([A-Za-z0-9_.-]+)="[^"]*"`)

// stripUnusedNamespaces removes xmlns:prefix declarations whose prefix is
// never referenced elsewhere in the document (editor metadata namespaces,
// typically).
func stripUnusedNamespaces(in []byte) []byte {
	return reXMLNS.ReplaceAllFunc(in, func(m []byte) []byte {
		prefix := reXMLNS.FindSubmatch(m)[1]
		rest := bytes.Replace(in, m, nil, 1)
		if bytes.Contains(rest, []byte(string(prefix)+":")) {
			return m
		}
		return nil
	})
}

// optimizeRaster decodes one raster image, resizes it to the clamped
// target width, and emits a webp rendition plus a re-encoded original
// format. Responsive webp renditions are added for configured widths
// below the clamped width. The source image is never upscaled.
func (p *Pipeline) optimizeRaster(src, ext string) ([]Asset, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	target := img.Bounds().Dx()
	if target > p.cfg.MaxWidth {
		target = p.cfg.MaxWidth
	}
	resized := scaleToWidth(img, target)

	dst, err := p.outPath(src)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(dst, filepath.Ext(dst))

	var assets []Asset

	webpBytes, err := encodeWebP(resized, p.cfg.WebPQuality)
	if err != nil {
		return nil, err
	}
	a, err := p.writeAsset(base+".webp", webpBytes, KindImage, src)
	if err != nil {
		return nil, err
	}
	assets = append(assets, a)

	for _, w := range p.cfg.ResponsiveWidths {
		if w >= target {
			continue
		}
		out, err := encodeWebP(scaleToWidth(img, w), p.cfg.WebPQuality)
		if err != nil {
			return nil, err
		}
		a, err := p.writeAsset(fmt.Sprintf("%s-%d.webp", base, w), out, KindImage, src)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	switch ext {
	case ".jpg", ".jpeg":
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		a, err := p.writeAsset(base+".jpg", buf.Bytes(), KindImage, src)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	case ".png":
		quantized := quantizeImage(resized, p.cfg.PNGQuantQuality)
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, quantized); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		a, err := p.writeAsset(base+".png", buf.Bytes(), KindImage, src)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, nil
}

// scaleToWidth resizes img to the given width, preserving aspect ratio.
// Images already at or below the width are returned as-is.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() <= width {
		return img
	}
	h := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// quantizeImage runs the lossy median-cut quantization pass. The upper
// quality bound scales the palette size; dithering keeps gradients usable
// at small palettes.
func quantizeImage(img image.Image, quality [2]int) *image.Paletted {
	colors := 256 * quality[1] / 100
	if colors < 2 {
		colors = 2
	}
	if colors > 256 {
		colors = 256
	}
	var q quantize.MedianCutQuantizer
	pal := q.Quantize(make([]color.Color, 0, colors), img)
	out := image.NewPaletted(img.Bounds(), pal)
	draw.FloydSteinberg.Draw(out, img.Bounds(), img, image.Point{})
	return out
}
