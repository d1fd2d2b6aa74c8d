package sink

import (
	"image"
	"log/slog"

	"github.com/tcolgate/abandoncam/internal/detect"
)

// Displays shows every frame on each of its sinks in turn.
type Displays []detect.DisplaySink

func (ds Displays) Show(frame image.Image) {
	for _, d := range ds {
		d.Show(frame)
	}
}

// LogAlerter reports alerts as warnings on a logger.
type LogAlerter struct {
	Log *slog.Logger
}

func (a LogAlerter) Notify(msg string) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	log.Warn(msg, "alert", true)
}
