package detect

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

func uniform(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// withBlock returns a copy of base with r filled with v.
func withBlock(base *image.Gray, r image.Rectangle, v uint8) *image.Gray {
	g := toGray(base)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{v})
		}
	}
	return g
}

// genClip yields n frames built by gen. n < 0 never ends.
type genClip struct {
	n      int
	gen    func(i int) image.Image
	i      int
	closed bool
}

func (c *genClip) NextFrame() (image.Image, error) {
	if c.n >= 0 && c.i >= c.n {
		return nil, ErrEndOfClip
	}
	f := c.gen(c.i)
	c.i++
	return f, nil
}

func (c *genClip) Close() error {
	c.closed = true
	return nil
}

type clipDef struct {
	n   int
	gen func(i int) image.Image
	err error
}

type fakeSource struct {
	mu     sync.Mutex
	defs   map[string]clipDef
	opened []string
	clips  []*genClip
}

func newFakeSource() *fakeSource {
	return &fakeSource{defs: map[string]clipDef{}}
}

func (s *fakeSource) add(id string, n int, gen func(i int) image.Image) {
	s.defs[id] = clipDef{n: n, gen: gen}
}

func (s *fakeSource) fail(id string) {
	s.defs[id] = clipDef{err: errors.New("no such file")}
}

func (s *fakeSource) OpenClip(_ context.Context, id string) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, id)
	def, ok := s.defs[id]
	if !ok {
		return nil, errors.New("unknown clip")
	}
	if def.err != nil {
		return nil, def.err
	}
	c := &genClip{n: def.n, gen: def.gen}
	s.clips = append(s.clips, c)
	return c, nil
}

func (s *fakeSource) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clips {
		if !c.closed {
			return false
		}
	}
	return true
}

type recorder struct {
	mu     sync.Mutex
	shown  int
	alerts []string
	bgs    int
	masks  int
}

func (r *recorder) Show(image.Image) {
	r.mu.Lock()
	r.shown++
	r.mu.Unlock()
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	r.alerts = append(r.alerts, msg)
	r.mu.Unlock()
}

func (r *recorder) Background(*image.Gray) { r.bgs++ }
func (r *recorder) Mask(*image.Gray)       { r.masks++ }
