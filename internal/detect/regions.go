package detect

import (
	"image"

	"github.com/harrydb/go/img/grayscale"
)

// Region is one 8-connected foreground component of a mask.
type Region struct {
	Points  []image.Point
	Outline []image.Point // boundary pixels only
	Bounds  image.Rectangle
}

// Area is the number of pixels in the region.
func (r Region) Area() int {
	return len(r.Points)
}

// ExtractRegions returns the outermost connected components of the set
// (255) pixels of a binary mask. Components nested inside the hole of
// another component are dropped, as are holes themselves. Order is
// unspecified.
func ExtractRegions(mask *image.Gray) []Region {
	cocos := grayscale.CoCos(mask, 255, grayscale.NEIGHBOR8)
	if len(cocos) == 0 {
		return nil
	}
	outside := outsideMask(mask)

	regions := make([]Region, 0, len(cocos))
	for i := range cocos {
		if len(cocos[i]) == 0 || !external(mask, outside, cocos[i]) {
			continue
		}
		regions = append(regions, newRegion(mask, cocos[i]))
	}
	return regions
}

// outsideMask marks the background pixels 4-connected to the frame edge.
// Foreground is 8-connected, so 4-connected background is what it can
// enclose.
func outsideMask(mask *image.Gray) []bool {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	outside := make([]bool, w*h)
	for _, bg := range grayscale.CoCos(mask, 0, grayscale.NEIGHBOR4) {
		if !touchesEdge(bg, w, h) {
			continue
		}
		for _, p := range bg {
			outside[p.Y*w+p.X] = true
		}
	}
	return outside
}

func touchesEdge(pts []image.Point, w, h int) bool {
	for _, p := range pts {
		if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
			return true
		}
	}
	return false
}

// external reports whether a component borders the frame edge or the
// background reachable from it.
func external(mask *image.Gray, outside []bool, pts []image.Point) bool {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	if touchesEdge(pts, w, h) {
		return true
	}
	for _, p := range pts {
		// no point lies on the edge here
		if outside[p.Y*w+p.X-1] || outside[p.Y*w+p.X+1] ||
			outside[(p.Y-1)*w+p.X] || outside[(p.Y+1)*w+p.X] {
			return true
		}
	}
	return false
}

func newRegion(mask *image.Gray, pts []image.Point) Region {
	b := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		b = b.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}

	// a pixel is on the outline if any 4-neighbour is background or
	// off the mask.
	set := func(x, y int) bool {
		if !(image.Point{x, y}).In(mask.Rect) {
			return false
		}
		return mask.GrayAt(x, y).Y == 255
	}
	var outline []image.Point
	for _, p := range pts {
		if !set(p.X-1, p.Y) || !set(p.X+1, p.Y) || !set(p.X, p.Y-1) || !set(p.X, p.Y+1) {
			outline = append(outline, p)
		}
	}

	return Region{Points: pts, Outline: outline, Bounds: b}
}

// FilterRegions keeps the regions whose area exceeds minArea. The input
// slice is not modified.
func FilterRegions(regions []Region, minArea int) []Region {
	var filtered []Region
	for i := range regions {
		if regions[i].Area() > minArea {
			filtered = append(filtered, regions[i])
		}
	}
	return filtered
}
