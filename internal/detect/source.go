package detect

import (
	"context"
	"errors"
	"image"
	"io"
)

var (
	ErrCannotOpenClip       = errors.New("cannot open clip")
	ErrCannotReadFirstFrame = errors.New("cannot read first frame")
	ErrEndOfClip            = errors.New("end of clip")
	ErrQueueExhausted       = errors.New("clip queue exhausted")
	ErrNoQueue              = errors.New("no clips queued")
)

// FrameSource opens clips by identifier.
type FrameSource interface {
	OpenClip(ctx context.Context, id string) (Clip, error)
}

// Clip yields the frames of one opened clip in order. NextFrame returns
// ErrEndOfClip (or io.EOF) once the clip is exhausted.
type Clip interface {
	NextFrame() (image.Image, error)
	Close() error
}

// DisplaySink receives frames for presentation. Show must not hold on to
// the frame past the call unless it copies it.
type DisplaySink interface {
	Show(frame image.Image)
}

// AlertSink receives human readable alerts.
type AlertSink interface {
	Notify(msg string)
}

// Inspector optionally receives the intermediate images of the pipeline.
type Inspector interface {
	Background(bg *image.Gray)
	Mask(mask *image.Gray)
}

// DisplayFunc adapts a function to a DisplaySink.
type DisplayFunc func(image.Image)

func (f DisplayFunc) Show(frame image.Image) { f(frame) }

// AlertFunc adapts a function to an AlertSink.
type AlertFunc func(string)

func (f AlertFunc) Notify(msg string) { f(msg) }

func isEndOfClip(err error) bool {
	return errors.Is(err, ErrEndOfClip) || errors.Is(err, io.EOF)
}
