package sink

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
)

// Stream serves shown frames as an MJPEG multipart HTTP stream. Slow
// viewers miss frames rather than holding up the pipeline.
type Stream struct {
	Quality int
	Log     *slog.Logger

	lock sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewStream(log *slog.Logger) *Stream {
	return &Stream{
		Quality: jpeg.DefaultQuality,
		Log:     log,
		subs:    make(map[chan []byte]struct{}),
	}
}

// Show encodes frame once and hands it to every subscriber that is ready.
func (s *Stream) Show(frame image.Image) {
	s.lock.RLock()
	n := len(s.subs)
	s.lock.RUnlock()
	if n == 0 {
		return
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: s.Quality}); err != nil {
		s.Log.Warn("jpeg encode failed", "err", err)
		return
	}

	s.lock.RLock()
	defer s.lock.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- buf.Bytes():
		default:
		}
	}
}

func (s *Stream) Subscribe() chan []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	ch := make(chan []byte, 1)
	s.subs[ch] = struct{}{}
	s.Log.Debug("subscriber added", "subscribers", len(s.subs))
	return ch
}

func (s *Stream) Unsubscribe(ch chan []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.Log.Debug("subscriber removed", "subscribers", len(s.subs))
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mjpg := s.Subscribe()
	defer s.Unsubscribe(mjpg)

	multipartWriter := multipart.NewWriter(w)
	var boundary = multipartWriter.Boundary()
	w.Header().Set("Content-Type", `multipart/x-mixed-replace;boundary=`+boundary)
	flusher, _ := w.(http.Flusher)

	for {
		var image []byte
		select {
		case image = <-mjpg:
		case <-r.Context().Done():
			return
		}
		iw, err := multipartWriter.CreatePart(textproto.MIMEHeader{
			"Content-type":   []string{"image/jpeg"},
			"Content-length": []string{strconv.Itoa(len(image))},
		})
		if err != nil {
			s.Log.Debug("stream closed", "remote", r.RemoteAddr, "err", err)
			return
		}
		if _, err = iw.Write(image); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
