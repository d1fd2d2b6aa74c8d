//go:build !linux

package source

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tcolgate/abandoncam/internal/detect"
)

// Webcam capture needs V4L2 and is only available on linux.
type Webcam struct {
	Format   string
	Size     string
	Timeouts int
	Log      *slog.Logger
}

func (Webcam) OpenClip(context.Context, string) (detect.Clip, error) {
	return nil, errors.New("webcam capture is only supported on linux")
}
