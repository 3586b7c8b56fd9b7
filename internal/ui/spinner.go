package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner is a single-line progress indicator for non-TUI runs.
type Spinner struct {
	out    io.Writer
	chars  []string
	delay  time.Duration
	mu     sync.Mutex
	suffix string
	stop   chan struct{}
	wg     sync.WaitGroup
	active bool
}

// NewSpinner writes frames to out, usually stderr.
func NewSpinner(out io.Writer, suffix string) *Spinner {
	return &Spinner{
		out:    out,
		chars:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		delay:  100 * time.Millisecond,
		suffix: suffix,
	}
}

// SetSuffix changes the text shown next to the spinner.
func (s *Spinner) SetSuffix(suffix string) {
	s.mu.Lock()
	s.suffix = suffix
	s.mu.Unlock()
}

func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.delay)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(s.chars) {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				suffix := s.suffix
				s.mu.Unlock()
				fmt.Fprintf(s.out, "\r\033[K%s %s", StyleAccent.Render(s.chars[i]), suffix)
			}
		}
	}()
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.out, "\r\033[K")
}
