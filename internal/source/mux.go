package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tcolgate/abandoncam/internal/detect"
)

// Mux picks a source by the shape of the clip identifier: V4L2 device
// paths go to Camera, directories to Dir and anything else to Video.
type Mux struct {
	Dir    detect.FrameSource
	Video  detect.FrameSource
	Camera detect.FrameSource
}

func (m Mux) OpenClip(ctx context.Context, id string) (detect.Clip, error) {
	src, kind := m.route(id)
	if src == nil {
		return nil, fmt.Errorf("no %s source configured for %q", kind, id)
	}
	return src.OpenClip(ctx, id)
}

func (m Mux) route(id string) (detect.FrameSource, string) {
	if strings.HasPrefix(id, "/dev/video") {
		return m.Camera, "camera"
	}
	if fi, err := os.Stat(id); err == nil && fi.IsDir() {
		return m.Dir, "directory"
	}
	return m.Video, "video"
}

// Scaled shrinks frames wider than Width, keeping the aspect ratio.
// Smaller frames pass through untouched.
type Scaled struct {
	Source detect.FrameSource
	Width  int
}

func (s Scaled) OpenClip(ctx context.Context, id string) (detect.Clip, error) {
	c, err := s.Source.OpenClip(ctx, id)
	if err != nil || s.Width <= 0 {
		return c, err
	}
	return &scaledClip{Clip: c, width: s.Width}, nil
}

type scaledClip struct {
	detect.Clip
	width int
}

func (c *scaledClip) NextFrame() (image.Image, error) {
	img, err := c.Clip.NextFrame()
	if err != nil || img.Bounds().Dx() <= c.width {
		return img, err
	}
	return imaging.Resize(img, c.width, 0, imaging.Box), nil
}
