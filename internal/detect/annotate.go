package detect

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// Annotator draws region outlines onto copies of frames for display.
type Annotator struct {
	fixed color.Color // nil selects a palette per call
	width float64
}

func NewAnnotator(cfg Config) *Annotator {
	a := &Annotator{width: float64(cfg.OutlineWidth)}
	if cfg.OutlineColor != "" {
		if c, err := colorful.Hex(cfg.OutlineColor); err == nil {
			a.fixed = c
		}
	}
	return a
}

// Annotate returns a copy of frame with each region's outline and area
// drawn on it. frame itself is not modified.
func (a *Annotator) Annotate(frame image.Image, regions []Region) image.Image {
	dc := gg.NewContextForImage(frame)
	if len(regions) == 0 {
		return dc.Image()
	}

	var pal []colorful.Color
	if a.fixed == nil {
		pal = colorful.FastWarmPalette(len(regions))
	}

	for i, r := range regions {
		if a.fixed != nil {
			dc.SetColor(a.fixed)
		} else {
			dc.SetColor(pal[i])
		}
		for _, p := range r.Outline {
			dc.DrawRectangle(float64(p.X), float64(p.Y), a.width, a.width)
		}
		dc.Fill()

		label := fmt.Sprintf("%dpx", r.Area())
		dc.DrawString(label, float64(r.Bounds.Min.X), float64(r.Bounds.Min.Y)-a.width-1)
	}
	return dc.Image()
}
