package detect

import (
	"image"

	"github.com/disintegration/gift"
)

var grayFilter = gift.New(gift.Grayscale())

// toGray returns a grayscale copy of img anchored at the origin. Gray input
// is copied too, so callers never share pixels with the source frame.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		w, h := g.Rect.Dx(), g.Rect.Dy()
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		return dst
	}
	dst := image.NewGray(grayFilter.Bounds(img.Bounds()))
	grayFilter.Draw(dst, img)
	return dst
}

// absDiffMask writes 255 into mask wherever |a-b| > threshold, 0 elsewhere,
// and returns the number of set pixels. All three must share bounds.
func absDiffMask(mask, a, b *image.Gray, threshold uint8) int {
	r := mask.Rect
	n := 0
	for y := 0; y < r.Dy(); y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+r.Dx()]
		rb := b.Pix[y*b.Stride : y*b.Stride+r.Dx()]
		rm := mask.Pix[y*mask.Stride : y*mask.Stride+r.Dx()]
		for x := range rm {
			d := int(ra[x]) - int(rb[x])
			if d < 0 {
				d = -d
			}
			if d > int(threshold) {
				rm[x] = 255
				n++
			} else {
				rm[x] = 0
			}
		}
	}
	return n
}

// ChangedFraction is the fraction of pixels whose intensity differs by more
// than threshold between a and b. Frames of different size count as fully
// changed.
func ChangedFraction(a, b *image.Gray, threshold uint8) float64 {
	if a.Rect.Size() != b.Rect.Size() {
		return 1
	}
	total := a.Rect.Dx() * a.Rect.Dy()
	if total == 0 {
		return 0
	}
	mask := image.NewGray(image.Rectangle{Max: a.Rect.Size()})
	return float64(absDiffMask(mask, a, b, threshold)) / float64(total)
}

// Stabilizer waits for a clip's scene to settle. The first observed frame
// is the reference and is never replaced; the first later frame close enough
// to it becomes the background model.
type Stabilizer struct {
	threshold uint8
	fraction  float64

	ref *image.Gray
	bg  *image.Gray
}

func NewStabilizer(cfg Config) *Stabilizer {
	return &Stabilizer{
		threshold: cfg.DiffThreshold,
		fraction:  cfg.SettleFraction,
	}
}

// Observe feeds the next frame of the clip. It returns the background model
// and true once the scene has settled; subsequent calls keep returning the
// same model.
func (s *Stabilizer) Observe(frame image.Image) (*image.Gray, bool) {
	if s.bg != nil {
		return s.bg, true
	}

	g := toGray(frame)
	if s.ref == nil {
		s.ref = g
		return nil, false
	}

	if ChangedFraction(s.ref, g, s.threshold) < s.fraction {
		s.bg = g
		return s.bg, true
	}
	return nil, false
}

// Reference is the first frame of the clip, nil before any Observe.
func (s *Stabilizer) Reference() *image.Gray {
	return s.ref
}

// Reset forgets the reference and background for a new clip.
func (s *Stabilizer) Reset() {
	s.ref = nil
	s.bg = nil
}
