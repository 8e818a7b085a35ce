package game

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Source records how an outcome was resolved. Consumers surface degraded
// sources differently: a replayed outcome is trustworthy but arrived via
// log query rather than the receipt, while a placeholder is a stand-in
// whose real result was never recovered.
type Source int

const (
	// SourceDecoded means the outcome was read from the transaction's
	// own receipt log.
	SourceDecoded Source = iota
	// SourceReplayed means the receipt carried no decodable log and the
	// outcome was recovered from a recent-block log query.
	SourceReplayed
	// SourcePlaceholder means resolution failed entirely; the bet is
	// confirmed on chain but symbols and win amount are unknown and
	// shown as a zero-win result.
	SourcePlaceholder
)

func (s Source) String() string {
	switch s {
	case SourceDecoded:
		return "decoded"
	case SourceReplayed:
		return "replayed"
	case SourcePlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Outcome is one resolved (or degraded) play result.
type Outcome struct {
	Player    common.Address `json:"player"`
	GameID    *big.Int       `json:"game_id,omitempty"`
	Symbols   [3]uint8       `json:"symbols"`
	BetAmount *big.Int       `json:"bet_amount"`
	WinAmount *big.Int       `json:"win_amount"`
	TxHash    common.Hash    `json:"tx_hash"`
	Block     uint64         `json:"block,omitempty"`
	Source    Source         `json:"source"`
}

// IsWin reports whether the outcome paid anything.
func (o Outcome) IsWin() bool {
	return o.WinAmount != nil && o.WinAmount.Sign() > 0
}

// IsJackpot reports a three-of-a-kind winning spin.
func (o Outcome) IsJackpot() bool {
	return o.IsWin() && o.Symbols[0] == o.Symbols[1] && o.Symbols[1] == o.Symbols[2]
}

// Degraded reports whether the outcome's real result is unknown.
func (o Outcome) Degraded() bool {
	return o.Source == SourcePlaceholder
}
