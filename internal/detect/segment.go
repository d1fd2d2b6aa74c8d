package detect

import (
	"image"

	"github.com/disintegration/gift"
)

// Segmenter produces foreground masks against a fixed background model.
// It keeps no state between frames.
type Segmenter struct {
	threshold uint8
	g         *gift.GIFT
}

func NewSegmenter(cfg Config) *Segmenter {
	filters := []gift.Filter{gift.Grayscale()}
	if cfg.BlurSigma > 0 {
		filters = append(filters, gift.GaussianBlur(cfg.BlurSigma))
	}
	return &Segmenter{
		threshold: cfg.DiffThreshold,
		g:         gift.New(filters...),
	}
}

// Segment returns a binary mask (0 or 255) of the pixels of frame that differ
// from bg by more than the threshold after smoothing. A frame whose size
// does not match the background yields an empty mask of the frame's size.
func (s *Segmenter) Segment(bg *image.Gray, frame image.Image) *image.Gray {
	smooth := image.NewGray(s.g.Bounds(frame.Bounds()))
	s.g.Draw(smooth, frame)

	mask := image.NewGray(smooth.Rect)
	if bg == nil || bg.Rect.Size() != smooth.Rect.Size() {
		return mask
	}
	absDiffMask(mask, bg, smooth, s.threshold)
	return mask
}
