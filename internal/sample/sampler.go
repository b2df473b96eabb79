package sample

import (
	"sync"
	"sync/atomic"
	"time"

	"babyriver/internal/curve"
	"babyriver/internal/log"
)

const (
	// defaultDebounce coalesces rapid successive rebuild requests; only
	// the last path requested within the window is sampled.
	defaultDebounce = 75 * time.Millisecond

	// buildChunkSize is how many samples are produced per slice before the
	// builder yields and re-checks whether it has been superseded.
	buildChunkSize = 64

	// defaultCacheSize bounds the completed-sample cache.
	defaultCacheSize = 8
)

// Options configures a Sampler.
type Options struct {
	// Debounce overrides the request-coalescing interval.
	Debounce time.Duration

	// CacheSize overrides the bounded result cache capacity.
	CacheSize int

	// FallbackX is returned by lookups before any sample exists,
	// typically the curve centerline.
	FallbackX float64

	// OnReady, if set, is called with each newly published sample.
	OnReady func(*CoordinateSample)
}

// Sampler owns the sample-map lifecycle for one timeline instance:
// debounced rebuild scheduling, chunked background building, supersede
// tracking, and the bounded result cache. Construct with NewSampler and
// release with Close; it is not an ambient singleton, so independent
// timelines get independent caches.
type Sampler struct {
	mu        sync.Mutex
	cache     *sampleCache
	debounce  time.Duration
	fallbackX float64
	onReady   func(*CoordinateSample)

	timer   *time.Timer
	pending *curve.Measured
	gen     atomic.Uint64
	closed  bool

	current atomic.Pointer[CoordinateSample]
}

// NewSampler creates a Sampler with the given options.
func NewSampler(opts Options) *Sampler {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	s := &Sampler{
		cache:     newSampleCache(opts.CacheSize),
		debounce:  opts.Debounce,
		fallbackX: opts.FallbackX,
		onReady:   opts.OnReady,
	}
	s.current.Store(&CoordinateSample{fallbackX: opts.FallbackX})
	return s
}

// Current returns the latest published sample. It is never nil; before the
// first build completes it is an empty sample whose lookups saturate to
// the fallback coordinate.
func (s *Sampler) Current() *CoordinateSample {
	return s.current.Load()
}

// Lookup resolves y against the latest published sample.
func (s *Sampler) Lookup(y float64) float64 {
	return s.Current().Lookup(y)
}

// Request schedules a rebuild against m. Requests arriving within the
// debounce window replace any pending one: a pending rebuild is never run
// against a path that is no longer current.
func (s *Sampler) Request(m *curve.Measured) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.pending = m
	gen := s.gen.Add(1)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if s.closed || s.gen.Load() != gen {
			s.mu.Unlock()
			return
		}
		target := s.pending
		s.pending = nil
		s.mu.Unlock()

		go s.buildAndPublish(target, gen)
	})
}

// RebuildNow builds synchronously, bypassing the debounce. Single-shot
// render paths and tests use this; it still consults and feeds the cache.
func (s *Sampler) RebuildNow(m *curve.Measured) *CoordinateSample {
	gen := s.gen.Add(1)
	s.buildAndPublish(m, gen)
	return s.Current()
}

func (s *Sampler) buildAndPublish(m *curve.Measured, gen uint64) {
	var length float64
	if m != nil {
		length = m.Length()
	}
	key := keyFor(length)

	s.mu.Lock()
	cached, hit := s.cache.get(key)
	s.mu.Unlock()

	if hit {
		s.publish(cached, gen)
		return
	}

	built, ok := build(m, s.fallbackX, func(done int) bool {
		// Superseded mid-build: abandon this slice's result.
		return s.gen.Load() != gen
	})
	if !ok {
		log.Debug("sample rebuild superseded", "generation", gen)
		return
	}

	s.mu.Lock()
	s.cache.put(key, built)
	s.mu.Unlock()

	s.publish(built, gen)
	log.Debug("sample map rebuilt",
		"samples", built.Len(),
		"path_length", length,
	)
}

func (s *Sampler) publish(built *CoordinateSample, gen uint64) {
	if s.gen.Load() != gen {
		return
	}
	s.current.Store(built)
	if s.onReady != nil {
		s.onReady(built)
	}
}

// Close cancels any pending rebuild. In-flight builds notice the bumped
// generation and discard their results.
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen.Add(1)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}
