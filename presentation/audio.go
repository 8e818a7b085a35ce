package presentation

import "sync"

// Mixer models the single-slot audio policy: one foreground cue at a
// time, background music ducked while it plays and resumed when it ends.
// A new cue replaces the current one rather than stacking.
type Mixer struct {
	mu         sync.Mutex
	bgmPlaying bool
	active     Cue
	hasActive  bool
}

func NewMixer() *Mixer {
	return &Mixer{bgmPlaying: true}
}

// PlayCue makes cue the foreground sound, pausing background music.
func (m *Mixer) PlayCue(cue Cue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = cue
	m.hasActive = true
	m.bgmPlaying = false
}

// CueDone clears the foreground slot; background music resumes only when
// the finished cue is still the active one (a replacement cue keeps the
// music paused).
func (m *Mixer) CueDone(cue Cue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasActive || m.active != cue {
		return
	}
	m.hasActive = false
	m.bgmPlaying = true
}

// State reports (background playing, active cue, cue present).
func (m *Mixer) State() (bool, Cue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bgmPlaying, m.active, m.hasActive
}
