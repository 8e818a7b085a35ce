package presentation

import (
	"time"

	"github.com/PixelPet-dev/xlayerslot/game"
)

// Symbol names in reel order; the on-chain symbol index maps directly
// into this table.
var symbolNames = [8]string{
	"Cherry", "Lemon", "Orange", "Plum", "Bell", "Bar", "Seven", "Jackpot",
}

// SymbolName resolves a reel index to its display name. Out-of-range
// indices (possible on a future contract upgrade) degrade to "Unknown"
// rather than panicking.
func SymbolName(idx uint8) string {
	if int(idx) >= len(symbolNames) {
		return "Unknown"
	}
	return symbolNames[idx]
}

// StagePhase identifies one step of the reveal choreography.
type StagePhase string

const (
	PhaseSpinFast  StagePhase = "spin_fast"
	PhaseStopReel1 StagePhase = "stop_reel_1"
	PhaseStopReel2 StagePhase = "stop_reel_2"
	PhaseStopReel3 StagePhase = "stop_reel_3"
	PhaseReveal    StagePhase = "reveal"
)

// Stage is one timed step of the reveal sequence.
type Stage struct {
	Phase    StagePhase    `json:"phase"`
	Duration time.Duration `json:"duration"`
	// Symbol is set on the stop phases: the symbol the reel lands on.
	Symbol string `json:"symbol,omitempty"`
}

// Cue is the audio/visual accent played at reveal time.
type Cue string

const (
	CueJackpot Cue = "jackpot"
	CueWin     Cue = "win"
	CueLose    Cue = "lose"
)

// CueFor picks the reveal accent: jackpot for a winning three-of-a-kind,
// win for any other payout, lose otherwise. Matched symbols with zero
// payout are still a loss.
func CueFor(o game.Outcome) Cue {
	switch {
	case o.IsJackpot():
		return CueJackpot
	case o.IsWin():
		return CueWin
	default:
		return CueLose
	}
}

// Reveal is the full presentation plan for one outcome.
type Reveal struct {
	Stages   []Stage   `json:"stages"`
	Cue      Cue       `json:"cue"`
	Symbols  [3]string `json:"symbols"`
	Degraded bool      `json:"degraded"`
}

// Choreography timing. The fast spin runs while reels are undecided,
// then each reel stops in turn before the result accent.
const (
	spinFastDuration = 900 * time.Millisecond
	reelStopInterval = 400 * time.Millisecond
	revealDuration   = 600 * time.Millisecond
)

// PlanReveal builds the staged reveal for an outcome. Degraded outcomes
// get the same choreography but are flagged so the surface can caption
// the result as unresolved instead of celebrating a zero win.
func PlanReveal(o game.Outcome) Reveal {
	names := [3]string{
		SymbolName(o.Symbols[0]),
		SymbolName(o.Symbols[1]),
		SymbolName(o.Symbols[2]),
	}
	return Reveal{
		Stages: []Stage{
			{Phase: PhaseSpinFast, Duration: spinFastDuration},
			{Phase: PhaseStopReel1, Duration: reelStopInterval, Symbol: names[0]},
			{Phase: PhaseStopReel2, Duration: reelStopInterval, Symbol: names[1]},
			{Phase: PhaseStopReel3, Duration: reelStopInterval, Symbol: names[2]},
			{Phase: PhaseReveal, Duration: revealDuration},
		},
		Cue:      CueFor(o),
		Symbols:  names,
		Degraded: o.Degraded(),
	}
}
