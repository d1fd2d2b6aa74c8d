//go:build linux

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/blackjack/webcam"

	"github.com/tcolgate/abandoncam/internal/detect"
)

const (
	fmtYUYV  = 0x56595559
	fmtMJPEG = 0x47504a4d
)

type byArea []webcam.FrameSize

func (slice byArea) Len() int {
	return len(slice)
}

//For sorting purposes
func (slice byArea) Less(i, j int) bool {
	ls := slice[i].MaxWidth * slice[i].MaxHeight
	rs := slice[j].MaxWidth * slice[j].MaxHeight
	return ls < rs
}

//For sorting purposes
func (slice byArea) Swap(i, j int) {
	slice[i], slice[j] = slice[j], slice[i]
}

var supportedFormats = map[webcam.PixelFormat]bool{
	fmtYUYV:  true,
	fmtMJPEG: true,
}

// Webcam opens V4L2 capture devices (/dev/videoN) as never-ending clips.
type Webcam struct {
	Format string // default first supported
	Size   string // WxH, default largest
	// Timeouts is how many consecutive one second waits for a frame are
	// tolerated before the clip fails (default 5).
	Timeouts int
	Log      *slog.Logger
}

func (wc Webcam) OpenClip(_ context.Context, dev string) (detect.Clip, error) {
	log := wc.Log
	if log == nil {
		log = slog.Default()
	}

	cam, err := webcam.Open(dev)
	if err != nil {
		return nil, err
	}

	f, w, h, err := configure(cam, wc.Format, wc.Size, log)
	if err != nil {
		cam.Close()
		return nil, err
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to start stream, %w", err)
	}

	timeouts := wc.Timeouts
	if timeouts <= 0 {
		timeouts = 5
	}
	return &camClip{
		cam:      cam,
		timeout:  1,
		timeouts: timeouts,
		f:        f,
		w:        w,
		h:        h,
		log:      log,
	}, nil
}

func configure(cam *webcam.Webcam, fmtstr, szstr string, log *slog.Logger) (webcam.PixelFormat, uint32, uint32, error) {
	formatDesc := cam.GetSupportedFormats()
	for f, s := range formatDesc {
		log.Debug("available format", "format", s, "code", fmt.Sprintf("%#x", f))
	}

	var format webcam.PixelFormat
FMT:
	for f, s := range formatDesc {
		if fmtstr == "" {
			if supportedFormats[f] {
				format = f
				break FMT
			}

		} else if fmtstr == s {
			if !supportedFormats[f] {
				return 0, 0, 0, fmt.Errorf("format %q is not supported", formatDesc[f])
			}
			format = f
			break
		}
	}
	if format == 0 {
		return 0, 0, 0, errors.New("no supported format found")
	}

	frames := byArea(cam.GetSupportedFrameSizes(format))
	sort.Sort(frames)

	var size *webcam.FrameSize
	switch {
	case szstr == "" && len(frames) > 0:
		size = &frames[len(frames)-1]
	case strings.Count(szstr, "x") == 1:
		parts := strings.Split(szstr, "x")
		x, xerr := strconv.Atoi(parts[0])
		y, yerr := strconv.Atoi(parts[1])
		if xerr != nil || yerr != nil {
			return 0, 0, 0, fmt.Errorf("couldn't parse width x height from %q", szstr)
		}
		size = &webcam.FrameSize{
			MaxWidth:  uint32(x),
			MaxHeight: uint32(y),
		}
	default:
		for i := range frames {
			if szstr == frames[i].GetString() {
				size = &frames[i]
			}
		}
	}
	if size == nil {
		return 0, 0, 0, fmt.Errorf("no matching frame size %q", szstr)
	}

	f, w, h, err := cam.SetImageFormat(format, size.MaxWidth, size.MaxHeight)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("SetImageFormat error %w", err)
	}
	log.Info("webcam configured", "format", formatDesc[f], "width", w, "height", h)
	return f, w, h, nil
}

type camClip struct {
	cam      *webcam.Webcam
	timeout  uint32
	timeouts int
	f        webcam.PixelFormat
	w, h     uint32
	log      *slog.Logger
}

func (c *camClip) NextFrame() (image.Image, error) {
	for misses := 0; ; {
		err := c.cam.WaitForFrame(c.timeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			misses++
			if misses >= c.timeouts {
				return nil, fmt.Errorf("no frame after %d waits: %w", misses, err)
			}
			c.log.Debug("webcam timeout", "misses", misses)
			continue
		default:
			return nil, fmt.Errorf("unhandled error from WaitForFrame, %w", err)
		}

		frame, err := c.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("unhandled error reading frame, %w", err)
		}
		if len(frame) == 0 {
			continue
		}

		// ReadFrame's buffer is reused by the driver.
		fc := make([]byte, len(frame))
		copy(fc, frame)
		return frameToImage(fc, c.w, c.h, c.f)
	}
}

func (c *camClip) Close() error {
	var serr error
	if err := c.cam.StopStreaming(); err != nil {
		serr = fmt.Errorf("failed to stop stream, %w", err)
	}
	return errors.Join(serr, c.cam.Close())
}

// motion jpeg frames are missing attributes for use as a
// regular jpeg. We add them back here.
func addMotionDht(frame []byte) []byte {
	var (
		dhtMarker = []byte{255, 196}
		dht       = []byte{1, 162, 0, 0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 1, 0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 16, 0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125, 1, 2, 3, 0, 4, 17, 5, 18, 33, 49, 65, 6, 19, 81, 97, 7, 34, 113, 20, 50, 129, 145, 161, 8, 35, 66, 177, 193, 21, 82, 209, 240, 36, 51, 98, 114, 130, 9, 10, 22, 23, 24, 25, 26, 37, 38, 39, 40, 41, 42, 52, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 225, 226, 227, 228, 229, 230, 231, 232, 233, 234, 241, 242, 243, 244, 245, 246, 247, 248, 249, 250, 17, 0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119, 0, 1, 2, 3, 17, 4, 5, 33, 49, 6, 18, 65, 81, 7, 97, 113, 19, 34, 50, 129, 8, 20, 66, 145, 161, 177, 193, 9, 35, 51, 82, 240, 21, 98, 114, 209, 10, 22, 36, 52, 225, 37, 241, 23, 24, 25, 26, 38, 39, 40, 41, 42, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 130, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 226, 227, 228, 229, 230, 231, 232, 233, 234, 242, 243, 244, 245, 246, 247, 248, 249, 250}
		sosMarker = []byte{255, 218}
	)
	if bytes.Contains(frame, dhtMarker) {
		return frame
	}
	jpegParts := bytes.SplitN(frame, sosMarker, 2)
	if len(jpegParts) != 2 {
		return frame
	}
	return append(jpegParts[0], append(dhtMarker, append(dht, append(sosMarker, jpegParts[1]...)...)...)...)
}

func frameToImage(frame []byte, w, h uint32, format webcam.PixelFormat) (image.Image, error) {
	switch format {
	case fmtYUYV:
		img := image.NewYCbCr(image.Rect(0, 0, int(w), int(h)), image.YCbCrSubsampleRatio422)
		if len(frame) < len(img.Cb)*4 {
			return nil, fmt.Errorf("short YUYV frame: %d bytes", len(frame))
		}
		for i := range img.Cb {
			ii := i * 4
			img.Y[i*2] = frame[ii]
			img.Y[i*2+1] = frame[ii+2]
			img.Cb[i] = frame[ii+1]
			img.Cr[i] = frame[ii+3]

		}
		return img, nil
	case fmtMJPEG:
		return jpeg.Decode(bytes.NewReader(addMotionDht(frame)))
	default:
	}
	return nil, errors.New("unknown format")
}
