package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/tcolgate/abandoncam/internal/detect"
)

// FFmpeg opens video files by decoding them to raw RGBA frames with an
// ffmpeg child process.
type FFmpeg struct {
	// InputArgs are passed to ffmpeg before -i, e.g. {"ss": "10"}.
	InputArgs ffmpeg.KwArgs
}

type probeInfo struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func videoSize(fn string) (int, int, error) {
	data, err := ffmpeg.Probe(fn)
	if err != nil {
		return 0, 0, err
	}
	var info probeInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return 0, 0, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	for _, s := range info.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, errors.New("no video stream")
}

func (f FFmpeg) OpenClip(ctx context.Context, id string) (detect.Clip, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	w, h, err := videoSize(id)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", id, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	in, out := io.Pipe()

	var inArgs []ffmpeg.KwArgs
	if f.InputArgs != nil {
		inArgs = append(inArgs, f.InputArgs)
	}
	stream := ffmpeg.Input(id, inArgs...).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgba"}).
		WithOutput(out)
	stream.Context = ctx

	c := &ffmpegClip{
		w:      w,
		h:      h,
		in:     in,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		err := stream.Run()
		out.CloseWithError(io.EOF)
		c.done <- err
	}()
	return c, nil
}

type ffmpegClip struct {
	w, h     int
	in       *io.PipeReader
	cancel   context.CancelFunc
	done     chan error
	err      error
	finished bool
}

func (c *ffmpegClip) NextFrame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, c.w, c.h))
	if _, err := io.ReadFull(c.in, img.Pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if runErr := c.wait(); runErr != nil {
				return nil, fmt.Errorf("ffmpeg: %w", runErr)
			}
			return nil, detect.ErrEndOfClip
		}
		return nil, err
	}
	return img, nil
}

func (c *ffmpegClip) wait() error {
	if !c.finished {
		c.err = <-c.done
		c.finished = true
	}
	return c.err
}

// Close stops ffmpeg. The error of a run that ended on its own is
// returned; the kill caused by closing early is not an error.
func (c *ffmpegClip) Close() error {
	select {
	case c.err = <-c.done:
		c.finished = true
	default:
	}
	exited := c.finished

	c.cancel()
	c.in.Close()
	err := c.wait()
	if !exited {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
