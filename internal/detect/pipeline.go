package detect

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// State is the per-clip stage of the pipeline.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateStabilizing
	StateDetecting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateStabilizing:
		return "stabilizing"
	case StateDetecting:
		return "detecting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the position of the pipeline in its clip queue.
type Session struct {
	ID      uuid.UUID
	Queue   []string
	Index   int
	Running bool
}

// ClipReport summarises one processed clip.
type ClipReport struct {
	Index int
	Clip  string

	Frames          int // frames read, including the first
	SettledFrame    int // index of the frame that became the background, -1 if never
	DetectionFrames int
	PeakRegions     int
	Alerted         bool
	Elapsed         time.Duration
}

type clipState struct {
	clip   Clip
	start  time.Time
	bg     *image.Gray
	report ClipReport
}

// Pipeline runs the abandoned object detection over a queue of clips, one
// frame per Tick. It is not safe for concurrent use; drive it from a single
// goroutine, usually through a Driver.
type Pipeline struct {
	cfg       Config
	log       *slog.Logger
	clock     clock.Clock
	src       FrameSource
	display   DisplaySink
	alerts    AlertSink
	inspector Inspector

	stab  *Stabilizer
	seg   *Segmenter
	ann   *Annotator
	timer *AlertTimer

	state   State
	session Session
	cur     *clipState
	reports []ClipReport
}

type Option func(*Pipeline)

// WithClock replaces the wall clock used to time clips.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithInspector receives each clip's background model and every mask.
func WithInspector(i Inspector) Option {
	return func(p *Pipeline) { p.inspector = i }
}

func NewPipeline(cfg Config, src FrameSource, display DisplaySink, alerts AlertSink, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		log:     slog.Default(),
		clock:   clock.New(),
		src:     src,
		display: display,
		alerts:  alerts,
		stab:    NewStabilizer(cfg),
		seg:     NewSegmenter(cfg),
		ann:     NewAnnotator(cfg),
		timer:   NewAlertTimer(cfg),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins a new session over queue, abandoning any session in
// progress.
func (p *Pipeline) Start(queue []string) error {
	if len(queue) == 0 {
		return ErrNoQueue
	}
	p.Stop()

	p.session = Session{
		ID:      uuid.New(),
		Queue:   append([]string(nil), queue...),
		Running: true,
	}
	p.reports = nil
	p.state = StateLoading
	p.log.Info("detection started", "session", p.session.ID, "clips", len(queue))
	return nil
}

// Resume restarts a stopped session at the clip it was stopped on.
func (p *Pipeline) Resume() error {
	switch {
	case len(p.session.Queue) == 0:
		return ErrNoQueue
	case p.session.Index >= len(p.session.Queue):
		return ErrQueueExhausted
	case p.session.Running:
		return nil
	}
	p.session.Running = true
	p.state = StateLoading
	p.log.Info("detection resumed", "session", p.session.ID, "clip", p.session.Index+1)
	return nil
}

// Stop releases the open clip and clears all per-clip state. The queue
// position is kept.
func (p *Pipeline) Stop() {
	if p.cur != nil {
		p.closeClip()
		p.log.Info("detection stopped", "session", p.session.ID, "clip", p.session.Index+1)
	}
	p.session.Running = false
	p.state = StateIdle
}

// Tick advances the pipeline by one frame. It reports whether the session is
// still running.
func (p *Pipeline) Tick(ctx context.Context) bool {
	switch p.state {
	case StateLoading:
		p.load(ctx)
	case StateStabilizing, StateDetecting:
		p.step()
	case StateDone:
		p.advance()
	}
	return p.session.Running
}

func (p *Pipeline) State() State {
	return p.state
}

// Session returns a copy of the session position.
func (p *Pipeline) Session() Session {
	s := p.session
	s.Queue = append([]string(nil), p.session.Queue...)
	return s
}

// Reports returns the reports of the clips finished in this session.
func (p *Pipeline) Reports() []ClipReport {
	return append([]ClipReport(nil), p.reports...)
}

// Background is the current clip's background model, nil until settled.
func (p *Pipeline) Background() *image.Gray {
	if p.cur == nil {
		return nil
	}
	return p.cur.bg
}

// load opens clips until one yields a first frame or the queue runs out.
func (p *Pipeline) load(ctx context.Context) {
	for p.session.Index < len(p.session.Queue) {
		err := p.open(ctx)
		if err == nil {
			p.state = StateStabilizing
			return
		}
		p.log.Warn("skipping clip", "session", p.session.ID, "clip", p.session.Index+1, "err", err)
		p.session.Index++
	}
	p.exhausted()
}

func (p *Pipeline) open(ctx context.Context) error {
	id := p.session.Queue[p.session.Index]
	clip, err := p.src.OpenClip(ctx, id)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrCannotOpenClip, id, err)
	}

	first, err := clip.NextFrame()
	if err != nil {
		clip.Close()
		return fmt.Errorf("%w of %q: %w", ErrCannotReadFirstFrame, id, err)
	}

	p.stab.Reset()
	p.timer.Reset()
	p.cur = &clipState{
		clip:  clip,
		start: p.clock.Now(),
		report: ClipReport{
			Index:        p.session.Index,
			Clip:         id,
			Frames:       1,
			SettledFrame: -1,
		},
	}
	p.stab.Observe(first)
	p.log.Info("clip opened", "session", p.session.ID, "clip", p.session.Index+1, "id", id)
	return nil
}

func (p *Pipeline) step() {
	frame, err := p.cur.clip.NextFrame()
	if err != nil {
		if !isEndOfClip(err) {
			p.log.Warn("clip read failed", "session", p.session.ID, "clip", p.session.Index+1, "err", err)
		}
		p.state = StateDone
		p.advance()
		return
	}
	p.cur.report.Frames++

	if p.state == StateStabilizing {
		bg, ok := p.stab.Observe(frame)
		if !ok {
			return
		}
		p.cur.bg = bg
		p.cur.report.SettledFrame = p.cur.report.Frames - 1
		p.state = StateDetecting
		if p.inspector != nil {
			p.inspector.Background(bg)
		}
		p.log.Debug("scene settled", "session", p.session.ID, "clip", p.session.Index+1, "frame", p.cur.report.SettledFrame)
		return
	}

	p.detect(frame)
}

func (p *Pipeline) detect(frame image.Image) {
	mask := p.seg.Segment(p.cur.bg, frame)
	regions := FilterRegions(ExtractRegions(mask), p.cfg.MinRegionArea)
	if p.inspector != nil {
		p.inspector.Mask(mask)
	}

	r := &p.cur.report
	r.DetectionFrames++
	if len(regions) > r.PeakRegions {
		r.PeakRegions = len(regions)
	}

	p.display.Show(p.ann.Annotate(frame, regions))

	elapsed := p.clock.Since(p.cur.start)
	if p.timer.Tick(elapsed, len(regions) > 0) {
		r.Alerted = true
		p.alerts.Notify(fmt.Sprintf("Suspicious object detected in clip %d", p.session.Index+1))
		p.log.Info("alert raised", "session", p.session.ID, "clip", p.session.Index+1, "elapsed", elapsed, "regions", len(regions))
	}
}

// advance finishes the current clip and moves to the next one.
func (p *Pipeline) advance() {
	if p.cur != nil {
		r := p.cur.report
		r.Elapsed = p.clock.Since(p.cur.start)
		p.reports = append(p.reports, r)
		p.log.Info("clip finished",
			"session", p.session.ID,
			"clip", p.session.Index+1,
			"frames", r.Frames,
			"settled", r.SettledFrame,
			"peak_regions", r.PeakRegions,
			"alerted", r.Alerted)
		p.closeClip()
	}

	p.session.Index++
	if p.session.Index >= len(p.session.Queue) {
		p.exhausted()
		return
	}
	p.state = StateLoading
}

func (p *Pipeline) exhausted() {
	p.session.Running = false
	p.state = StateIdle
	p.log.Info("detection finished", "session", p.session.ID, "clips", len(p.session.Queue))
}

func (p *Pipeline) closeClip() {
	if err := p.cur.clip.Close(); err != nil {
		p.log.Warn("closing clip", "session", p.session.ID, "clip", p.session.Index+1, "err", err)
	}
	p.cur = nil
	p.stab.Reset()
	p.timer.Reset()
}
