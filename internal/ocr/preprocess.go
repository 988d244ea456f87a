// Image preprocessing applied before recognition. The pipeline improves
// Tesseract accuracy on photos of signage: fit within a maximum
// dimension, stretch contrast, convert to grayscale, then sharpen.

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

const (
	contrastFactor   = 1.3
	contrastMidpoint = 128
)

// sharpenKernel is a 3x3 convolution that accentuates edges. The kernel
// sums to 1, so flat regions pass through unchanged.
var sharpenKernel = [3][3]float64{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Preprocess decodes an encoded image, runs the full pipeline, and
// re-encodes as PNG (lossless, so the filters are not undone by
// recompression artifacts).
func Preprocess(encoded []byte, maxDimension int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	rgba := toRGBA(img)
	rgba = ResizeToFit(rgba, maxDimension)
	AdjustContrast(rgba, contrastFactor)
	Grayscale(rgba)
	rgba = Sharpen(rgba)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// ResizeToFit scales the image down so the longer side is at most
// maxDimension, preserving aspect ratio. Images already within the bound
// (or a non-positive bound) are returned unchanged.
func ResizeToFit(img *image.RGBA, maxDimension int) *image.RGBA {
	if maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(w)
	if h > w {
		scale = float64(maxDimension) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// AdjustContrast stretches each channel around the midpoint by the given
// factor, clamping to [0, 255]. Alpha is untouched.
func AdjustContrast(img *image.RGBA, factor float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[i+c])
				img.Pix[i+c] = clampByte((v-contrastMidpoint)*factor + contrastMidpoint)
			}
		}
	}
}

// Grayscale converts in place using the luminance weights 0.299/0.587/0.114.
func Grayscale(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			bl := float64(img.Pix[i+2])
			gray := clampByte(0.299*r + 0.587*g + 0.114*bl)
			img.Pix[i] = gray
			img.Pix[i+1] = gray
			img.Pix[i+2] = gray
		}
	}
}

// Sharpen applies the 3x3 kernel to interior pixels. Border pixels are
// copied unconvolved; the accumulation is not renormalized.
func Sharpen(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	copy(out.Pix, img.Pix)

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			var acc [3]float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					k := sharpenKernel[ky+1][kx+1]
					if k == 0 {
						continue
					}
					i := img.PixOffset(x+kx, y+ky)
					acc[0] += k * float64(img.Pix[i])
					acc[1] += k * float64(img.Pix[i+1])
					acc[2] += k * float64(img.Pix[i+2])
				}
			}
			i := out.PixOffset(x, y)
			out.Pix[i] = clampByte(acc[0])
			out.Pix[i+1] = clampByte(acc[1])
			out.Pix[i+2] = clampByte(acc[2])
		}
	}
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, color.RGBAModel.Convert(img.At(x, y)))
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
