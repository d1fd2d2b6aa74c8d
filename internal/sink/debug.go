package sink

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Debug keeps the latest background model and foreground mask so they can
// be inspected over HTTP while the pipeline runs.
type Debug struct {
	sync.RWMutex
	Log  *slog.Logger
	bg   *image.Gray
	mask *image.Gray
}

func NewDebug(log *slog.Logger) *Debug {
	return &Debug{Log: log}
}

func (d *Debug) Background(bg *image.Gray) {
	d.Lock()
	defer d.Unlock()
	d.bg = bg
}

func (d *Debug) Mask(mask *image.Gray) {
	d.Lock()
	defer d.Unlock()
	d.mask = mask
}

// ServeHTTP serves /background and /mask as PNG, relative to wherever
// the handler is mounted with http.StripPrefix.
func (d *Debug) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.RLock()
	defer d.RUnlock()

	var img *image.Gray
	switch strings.Trim(r.URL.Path, "/") {
	case "background":
		img = d.bg
	case "mask":
		img = d.mask
	default:
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if img == nil {
		http.Error(w, "not available yet", http.StatusServiceUnavailable)
		return
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		d.Log.Warn("png encode failed", "path", r.URL.Path, "err", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
