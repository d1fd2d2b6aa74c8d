package main // import "github.com/tcolgate/abandoncam"

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/tcolgate/abandoncam/internal/detect"
	"github.com/tcolgate/abandoncam/internal/sink"
	"github.com/tcolgate/abandoncam/internal/source"
)

func main() {
	cfgPath := flag.String("config", "", "JSON config file, default built in thresholds")
	addr := flag.String("l", ":8080", "addr to listen, empty to disable the viewer")
	record := flag.String("record", "", "write annotated frames to this AVI file")
	width := flag.Int("width", 0, "downscale frames wider than this")
	fmtstr := flag.String("fmt", "", "webcam format to use, default first supported")
	szstr := flag.String("size", "", "webcam frame size to use, default largest one")
	fps := flag.Bool("p", false, "print fps info")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(log)

	if err := run(log, *cfgPath, *addr, *record, *width, *fmtstr, *szstr, *fps, flag.Args()); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfgPath, addr, record string, width int, fmtstr, szstr string, fps bool, clips []string) error {
	cfg := detect.DefaultConfig()
	if cfgPath != "" {
		var err error
		if cfg, err = detect.LoadConfig(cfgPath); err != nil {
			return err
		}
	}
	if len(clips) == 0 {
		return errors.New("no clips given, pass video files, frame directories or /dev/videoN devices")
	}

	src := source.Scaled{
		Source: source.Mux{
			Dir:    source.Dir{},
			Video:  source.FFmpeg{},
			Camera: source.Webcam{Format: fmtstr, Size: szstr, Log: log.With("source", "webcam")},
		},
		Width: width,
	}

	stream := sink.NewStream(log.With("sink", "stream"))
	dbg := sink.NewDebug(log.With("sink", "debug"))
	displays := sink.Displays{stream}
	if record != "" {
		rate := int(time.Second / time.Duration(cfg.TickInterval))
		rec := sink.NewRecorder(record, rate, log.With("sink", "record"))
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("closing recording", "err", err)
			}
		}()
		displays = append(displays, rec)
	}

	p := detect.NewPipeline(cfg, src, displays, sink.LogAlerter{Log: log},
		detect.WithLogger(log),
		detect.WithInspector(dbg))
	if err := p.Start(clips); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr != "" {
		http.HandleFunc("/", sink.Page)
		http.Handle("/stream", stream)
		http.Handle("/debug/background", http.StripPrefix("/debug", dbg))
		http.Handle("/debug/mask", http.StripPrefix("/debug", dbg))
		srv := &http.Server{Addr: addr}
		go func() {
			log.Info("viewer listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("viewer failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	d := detect.NewDriver(p)
	if fps {
		d.FPSEvery = 10 * time.Second
	}
	err := d.Run(ctx)
	for _, r := range p.Reports() {
		log.Info("clip summary",
			"clip", r.Clip,
			"frames", r.Frames,
			"settled", r.SettledFrame,
			"peak_regions", r.PeakRegions,
			"alerted", r.Alerted)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
