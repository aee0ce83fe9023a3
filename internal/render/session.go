package render

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Session is the rendering side's mutable state: whether audio is on, the
// last level seen per comparison direction, when each last sounded, and the
// funding settle target per pair.
type Session struct {
	audio atomic.Bool

	mu            sync.Mutex
	cooldown      time.Duration
	lastLevel     map[string]domain.AlertLevel
	lastSound     map[string]time.Time
	fundingTarget map[string]time.Time
}

// NewSession creates a Session. cooldown is the minimum gap between two
// sounds for the same comparison direction.
func NewSession(audioEnabled bool, cooldown time.Duration) *Session {
	s := &Session{
		cooldown:      cooldown,
		lastLevel:     make(map[string]domain.AlertLevel),
		lastSound:     make(map[string]time.Time),
		fundingTarget: make(map[string]time.Time),
	}
	s.audio.Store(audioEnabled)
	return s
}

// Key names one comparison direction.
func Key(comparisonID string, dir domain.Direction) string {
	return comparisonID + "/" + string(dir)
}

func (s *Session) SetAudio(enabled bool) { s.audio.Store(enabled) }
func (s *Session) AudioEnabled() bool    { return s.audio.Load() }

// Transition records level for key and returns the previous one. seen is
// false the first time key is reported.
func (s *Session) Transition(key string, level domain.AlertLevel) (prev domain.AlertLevel, seen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen = s.lastLevel[key]
	s.lastLevel[key] = level
	return prev, seen
}

// ShouldSound reports whether cue may play now for key. It is false while
// audio is off, for silent cues, and within the cooldown of the last sound.
// A true result starts a new cooldown.
func (s *Session) ShouldSound(key string, cue domain.SoundCue, now time.Time) bool {
	if !cue.ShouldPlay || !s.AudioEnabled() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSound[key]
	if ok && now.Sub(last) < s.cooldown {
		return false
	}
	s.lastSound[key] = now
	return true
}

// FundingChanged records next as the settle target of pair and reports
// whether it differs from the previous one.
func (s *Session) FundingChanged(pair string, next time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.fundingTarget[pair]
	s.fundingTarget[pair] = next
	return !ok || !prev.Equal(next)
}

// Levels returns a copy of the last level per comparison direction.
func (s *Session) Levels() map[string]domain.AlertLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.AlertLevel, len(s.lastLevel))
	for k, v := range s.lastLevel {
		out[k] = v
	}
	return out
}
