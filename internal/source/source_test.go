package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/tcolgate/abandoncam/internal/detect"
)

func writeFrames(t *testing.T, dir string, n, w, h int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := imaging.New(w, h, color.Gray{uint8(i * 10)})
		fn := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i+1))
		require.NoError(t, imaging.Save(img, fn))
	}
}

func readAll(t *testing.T, c detect.Clip) []image.Image {
	t.Helper()
	var frames []image.Image
	for {
		f, err := c.NextFrame()
		if err != nil {
			require.ErrorIs(t, err, detect.ErrEndOfClip)
			return frames
		}
		frames = append(frames, f)
	}
}

func TestDirPlaysFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 5, 32, 24)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	c, err := Dir{}.OpenClip(context.Background(), dir)
	require.NoError(t, err)
	defer c.Close()

	frames := readAll(t, c)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, image.Rect(0, 0, 32, 24), f.Bounds())
		r, _, _, _ := f.At(0, 0).RGBA()
		assert.Equal(t, uint32(i*10)*0x101, r, "frame %d out of order", i)
	}
}

func TestDirErrors(t *testing.T) {
	_, err := Dir{}.OpenClip(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_0001.jpg"), []byte("not a jpeg"), 0o644))
	c, err := Dir{}.OpenClip(context.Background(), dir)
	require.NoError(t, err)
	_, err = c.NextFrame()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, detect.ErrEndOfClip)

	empty, err := Dir{}.OpenClip(context.Background(), t.TempDir())
	require.NoError(t, err)
	_, err = empty.NextFrame()
	assert.ErrorIs(t, err, detect.ErrEndOfClip)
}

type named string

func (n named) OpenClip(context.Context, string) (detect.Clip, error) {
	return nil, fmt.Errorf("%s", string(n))
}

func TestMuxRoutes(t *testing.T) {
	m := Mux{Dir: named("dir"), Video: named("video"), Camera: named("camera")}
	dir := t.TempDir()

	_, err := m.OpenClip(context.Background(), dir)
	assert.EqualError(t, err, "dir")
	_, err = m.OpenClip(context.Background(), filepath.Join(dir, "clip.mp4"))
	assert.EqualError(t, err, "video")
	_, err = m.OpenClip(context.Background(), "/dev/video0")
	assert.EqualError(t, err, "camera")

	_, err = Mux{}.OpenClip(context.Background(), dir)
	assert.Error(t, err)
}

func TestScaled(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 2, 640, 480)

	c, err := Scaled{Source: Dir{}, Width: 320}.OpenClip(context.Background(), dir)
	require.NoError(t, err)
	frames := readAll(t, c)
	require.Len(t, frames, 2)
	assert.Equal(t, image.Rect(0, 0, 320, 240), frames[0].Bounds())

	c, err = Scaled{Source: Dir{}, Width: 1000}.OpenClip(context.Background(), dir)
	require.NoError(t, err)
	frames = readAll(t, c)
	assert.Equal(t, image.Rect(0, 0, 640, 480), frames[0].Bounds())
}

func TestFFmpeg(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}

	fn := filepath.Join(t.TempDir(), "clip.avi")
	err := ffmpeg.Input("color=c=gray:s=64x48:d=1", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(fn, ffmpeg.KwArgs{"r": 10, "vcodec": "mjpeg"}).
		OverWriteOutput().
		Run()
	require.NoError(t, err)

	c, err := FFmpeg{}.OpenClip(context.Background(), fn)
	require.NoError(t, err)
	defer c.Close()

	frames := readAll(t, c)
	require.NotEmpty(t, frames)
	assert.Equal(t, image.Rect(0, 0, 64, 48), frames[0].Bounds())

	_, err = FFmpeg{}.OpenClip(context.Background(), filepath.Join(t.TempDir(), "missing.avi"))
	assert.Error(t, err)
}

func TestFFmpegClipClose(t *testing.T) {
	newClip := func() *ffmpegClip {
		in, out := io.Pipe()
		out.Close()
		return &ffmpegClip{w: 2, h: 2, in: in, done: make(chan error, 1)}
	}

	// ffmpeg failed before we closed it
	c := newClip()
	c.cancel = func() {}
	c.done <- errors.New("exit status 1")
	assert.ErrorContains(t, c.Close(), "exit status 1")

	// killed because we closed it
	c = newClip()
	c.cancel = func() { c.done <- errors.New("signal: killed") }
	assert.NoError(t, c.Close())

	// a clean exit read to the end
	c = newClip()
	c.cancel = func() {}
	c.done <- nil
	_, err := c.NextFrame()
	assert.ErrorIs(t, err, detect.ErrEndOfClip)
	assert.NoError(t, c.Close())
}
