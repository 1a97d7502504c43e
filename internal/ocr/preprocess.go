package ocr

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	thresholdBlock = 11  // neighbourhood side for the local mean
	thresholdC     = 2.0 // subtracted from the local mean
	maxSkewDeg     = 45.0
	minSkewDeg     = 0.1
)

// preprocessed holds the binarized page and what was done to it.
type preprocessed struct {
	img       *image.Gray // dark text on white
	skewDeg   float64
	deskewed  bool
	skipCause string
}

// preprocess converts to grayscale, binarizes with a Gaussian-weighted local
// threshold and straightens the dominant text orientation. Deskew is skipped,
// never failed, for tiny or blank images.
func preprocess(src image.Image, minDeskewDim int) preprocessed {
	gray := toGray(src)
	ink := adaptiveThreshold(gray, thresholdBlock, thresholdC)

	out := preprocessed{img: inkToImage(ink, gray.Bounds())}
	b := gray.Bounds()
	if b.Dx() < minDeskewDim || b.Dy() < minDeskewDim {
		out.skipCause = "image below minimum deskew dimension"
		return out
	}

	angle, ok := skewAngle(ink, b.Dx(), b.Dy())
	if !ok {
		out.skipCause = "no foreground pixels"
		return out
	}
	out.skewDeg = angle
	if math.Abs(angle) < minSkewDeg {
		return out
	}
	out.img = rotate(out.img, -angle)
	out.deskewed = true
	return out
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// adaptiveThreshold marks a pixel as ink when it is darker than the
// Gaussian-weighted mean of its block minus c. Borders replicate edge pixels.
func adaptiveThreshold(g *image.Gray, block int, c float64) []bool {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	kernel := gaussianKernel(block)
	r := block / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := 0; x < w; x++ {
			var s float64
			for k := -r; k <= r; k++ {
				s += kernel[k+r] * float64(row[clamp(x+k, 0, w-1)])
			}
			tmp[y*w+x] = s
		}
	}

	ink := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for k := -r; k <= r; k++ {
				s += kernel[k+r] * tmp[clamp(y+k, 0, h-1)*w+x]
			}
			v := float64(g.Pix[y*g.Stride+x])
			ink[y*w+x] = v <= s-c
		}
	}
	return ink
}

// gaussianKernel uses the sigma OpenCV derives from the block size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*((float64(size)-1)*0.5-1) + 0.8
	r := size / 2
	k := make([]float64, size)
	var sum float64
	for i := -r; i <= r; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func inkToImage(ink []bool, b image.Rectangle) *image.Gray {
	w, h := b.Dx(), b.Dy()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, on := range ink {
		if on {
			img.Pix[(i/w)*img.Stride+i%w] = 0
		} else {
			img.Pix[(i/w)*img.Stride+i%w] = 255
		}
	}
	return img
}

// skewAngle estimates the text baseline angle in degrees from the principal
// axis of the ink pixels. Positive means the text rises to the right.
func skewAngle(ink []bool, w, h int) (float64, bool) {
	var n, sx, sy float64
	for i, on := range ink {
		if !on {
			continue
		}
		n++
		sx += float64(i % w)
		sy += float64(i / w)
	}
	if n < 2 {
		return 0, false
	}
	mx, my := sx/n, sy/n

	var cxx, cyy, cxy float64
	for i, on := range ink {
		if !on {
			continue
		}
		dx := float64(i%w) - mx
		dy := float64(i/w) - my
		cxx += dx * dx
		cyy += dy * dy
		cxy += dx * dy
	}
	if cxx == 0 && cyy == 0 {
		return 0, false
	}

	// image y grows downwards, so negate to get the usual orientation
	deg := -0.5 * math.Atan2(2*cxy, cxx-cyy) * 180 / math.Pi
	for deg > maxSkewDeg {
		deg -= 90
	}
	for deg < -maxSkewDeg {
		deg += 90
	}
	return deg, true
}

// rotate turns img counter-clockwise by deg around its centre, filling
// uncovered corners with white.
func rotate(img *image.Gray, deg float64) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	// dst = R(src - c) + c, with y pointing down
	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, img, b, draw.Src, nil)
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
