package sink

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
	}
	return img
}

func TestStreamServesJPEGParts(t *testing.T) {
	s := NewStream(quietLogger())
	srv := httptest.NewServer(s)
	defer srv.Close()

	// the handler only answers once it has a frame to send
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		frame := solid(32, 24, color.RGBA{R: 200, A: 255})
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				s.Show(frame)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	mt, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mt)

	mr := multipart.NewReader(resp.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	img, err := jpeg.Decode(part)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
}

func TestStreamWithoutSubscribers(t *testing.T) {
	s := NewStream(quietLogger())
	s.Show(solid(8, 8, color.White))

	ch := s.Subscribe()
	s.Show(solid(8, 8, color.White))
	s.Show(solid(8, 8, color.Black)) // dropped, ch is full
	assert.Len(t, ch, 1)

	s.Unsubscribe(ch)
	_, ok := <-ch
	assert.True(t, ok, "buffered frame still readable")
	_, ok = <-ch
	assert.False(t, ok)
	s.Unsubscribe(ch)
}

func TestDebugServesPNG(t *testing.T) {
	d := NewDebug(quietLogger())

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		d.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/background").Code)
	assert.Equal(t, http.StatusNotFound, get("/other").Code)

	bg := image.NewGray(image.Rect(0, 0, 4, 3))
	bg.Pix[5] = 99
	d.Background(bg)
	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	mask.Pix[0] = 255
	d.Mask(mask)

	for path, want := range map[string]*image.Gray{"/background": bg, "/mask": mask} {
		rr := get(path)
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		img, err := png.Decode(rr.Body)
		require.NoError(t, err)
		gray, ok := img.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, want.Pix, gray.Pix, path)
	}

	// an image png cannot encode
	d.Mask(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Equal(t, http.StatusInternalServerError, get("/mask").Code)
}

func TestPage(t *testing.T) {
	rr := httptest.NewRecorder()
	Page(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `src="/stream"`)

	rr = httptest.NewRecorder()
	Page(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecorderStartsNewFileOnResize(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "out.avi")
	r := NewRecorder(fn, 10, quietLogger())

	for i := 0; i < 3; i++ {
		r.Show(solid(64, 48, color.White))
	}
	for i := 0; i < 2; i++ {
		r.Show(solid(32, 24, color.Black))
	}
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	files := r.Files()
	require.Equal(t, []string{fn, filepath.Join(filepath.Dir(fn), "out-1.avi")}, files)
	for _, f := range files {
		st, err := os.Stat(f)
		require.NoError(t, err)
		assert.NotZero(t, st.Size())
	}
	assert.Equal(t, 5, r.frames)
}

type countDisplay struct{ n int }

func (c *countDisplay) Show(image.Image) { c.n++ }

func TestDisplaysAndLogAlerter(t *testing.T) {
	a, b := &countDisplay{}, &countDisplay{}
	ds := Displays{a, b}
	ds.Show(solid(2, 2, color.White))
	ds.Show(solid(2, 2, color.White))
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)

	var buf bytes.Buffer
	LogAlerter{Log: slog.New(slog.NewTextHandler(&buf, nil))}.Notify("Suspicious object detected in clip 1")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "Suspicious object detected in clip 1")
}
