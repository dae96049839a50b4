// Package ocrtest provides a deterministic ocr.Recognizer for tests.
package ocrtest

import (
	"context"
	"sync"

	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
)

// Scripted is an ocr.Recognizer that replays canned outputs in call order.
// Once the script is exhausted it keeps returning Fallback.
type Scripted struct {
	mu       sync.Mutex
	Outputs  []string
	Fallback string
	Err      error
	Modes    []ocr.Mode
}

// Recognize returns the next scripted output.
func (s *Scripted) Recognize(ctx context.Context, img *imaging.Image, mode ocr.Mode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Modes = append(s.Modes, mode)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Outputs) == 0 {
		return s.Fallback, nil
	}
	out := s.Outputs[0]
	s.Outputs = s.Outputs[1:]
	return out, nil
}

var _ ocr.Recognizer = (*Scripted)(nil)

// Calls reports how many recognitions were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Modes)
}
