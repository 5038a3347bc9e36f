// Package speech turns announcements into spoken output.
package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// DefaultDelay separates cancelling an utterance from starting the next one.
const DefaultDelay = 200 * time.Millisecond

// Synthesizer speaks text. Speak blocks until playback ends or ctx is
// cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Sink implements ports.NotificationSink. The last message wins: a new
// announcement cancels whatever is being spoken or waiting to be spoken.
// Every announcement is logged; notices are logged only.
type Sink struct {
	synth  Synthesizer
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSink creates a voice sink. A nil synth degrades to logging only.
func NewSink(synth Synthesizer, delay time.Duration, logger *slog.Logger) *Sink {
	if delay < 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{synth: synth, delay: delay, logger: logger}
}

// Announce never blocks on playback.
func (s *Sink) Announce(ctx context.Context, a domain.Announcement) {
	s.logger.Info("announcement", "kind", a.Kind, "message", a.Message, "task_id", a.TaskID)
	if !a.Spoken() || s.synth == nil {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	uctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.speak(uctx, gen, a.Message)
}

func (s *Sink) speak(ctx context.Context, gen uint64, text string) {
	defer s.wg.Done()
	defer s.release(gen)

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	if err := s.synth.Speak(ctx, text); err != nil && ctx.Err() == nil {
		s.logger.Warn("speech failed", "error", err)
	}
}

// release drops the cancel func if gen is still the current utterance.
func (s *Sink) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close cancels any pending utterance and waits for playback goroutines.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}
