package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tcolgate/abandoncam/internal/detect"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Dir opens clips stored as directories of still frames, such as the
// frame_0001.jpg sequences ffmpeg writes. Frames are played in lexical
// order of their file names.
type Dir struct{}

func (Dir) OpenClip(_ context.Context, id string) (detect.Clip, error) {
	entries, err := os.ReadDir(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", id, err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(id, e.Name()))
	}
	sort.Strings(frames)

	return &dirClip{frames: frames}, nil
}

type dirClip struct {
	frames []string
	i      int
}

func (c *dirClip) NextFrame() (image.Image, error) {
	if c.i >= len(c.frames) {
		return nil, detect.ErrEndOfClip
	}
	fn := c.frames[c.i]
	c.i++

	img, err := imaging.Open(fn, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", fn, err)
	}
	return img, nil
}

func (c *dirClip) Close() error {
	c.frames = nil
	return nil
}
