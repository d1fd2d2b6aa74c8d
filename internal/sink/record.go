package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/icza/mjpeg"
)

// Recorder writes shown frames to an MJPEG AVI. When the frame size
// changes, usually at a clip boundary, the current file is finished and a
// new one numbered after it is started.
type Recorder struct {
	path string
	fps  int32
	log  *slog.Logger

	mu     sync.Mutex
	aw     mjpeg.AviWriter
	size   image.Point
	files  []string
	frames int
	buf    bytes.Buffer
}

func NewRecorder(path string, fps int, log *slog.Logger) *Recorder {
	return &Recorder{path: path, fps: int32(fps), log: log}
}

func (r *Recorder) Show(frame image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := frame.Bounds().Size()
	if r.aw != nil && size != r.size {
		r.finish()
	}
	if r.aw == nil {
		fn := r.nextName()
		aw, err := mjpeg.New(fn, int32(size.X), int32(size.Y), r.fps)
		if err != nil {
			r.log.Warn("recording disabled for frame", "file", fn, "err", err)
			return
		}
		r.aw, r.size = aw, size
		r.files = append(r.files, fn)
		r.log.Info("recording", "file", fn, "width", size.X, "height", size.Y)
	}

	r.buf.Reset()
	if err := jpeg.Encode(&r.buf, frame, nil); err != nil {
		r.log.Warn("jpeg encode failed", "err", err)
		return
	}
	if err := r.aw.AddFrame(r.buf.Bytes()); err != nil {
		r.log.Warn("recording frame failed", "err", err)
		return
	}
	r.frames++
}

func (r *Recorder) nextName() string {
	if len(r.files) == 0 {
		return r.path
	}
	ext := filepath.Ext(r.path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(r.path, ext), len(r.files), ext)
}

func (r *Recorder) finish() {
	if err := r.aw.Close(); err != nil {
		r.log.Warn("closing recording", "err", err)
	}
	r.aw = nil
}

// Files lists the recordings started so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aw == nil {
		return nil
	}
	err := r.aw.Close()
	r.aw = nil
	return err
}
