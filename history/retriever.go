package history

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/game"
)

// LogSource is the chain surface history retrieval needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterGamePlayed(ctx context.Context, fromBlock, toBlock uint64, player *common.Address) ([]contract.GamePlayed, error)
	MaxBlockRange() uint64
}

// Retriever loads a player's recent plays from event logs. Providers cap
// getLogs ranges, so it queries the widest window the cap allows ending
// at the head. History is best effort: a failed retrieval yields an empty
// list, never an error, because history is display data and must not
// block play.
type Retriever struct {
	source LogSource
	depth  int
	logger zerolog.Logger
}

func NewRetriever(source LogSource, depth int, logger zerolog.Logger) *Retriever {
	if depth <= 0 {
		depth = game.DefaultRingDepth
	}
	return &Retriever{
		source: source,
		depth:  depth,
		logger: logger.With().Str("component", "history_retriever").Logger(),
	}
}

// Recent returns up to depth outcomes for the player, newest first.
func (r *Retriever) Recent(ctx context.Context, player common.Address) []game.Outcome {
	head, err := r.source.BlockNumber(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("history unavailable, head lookup failed")
		return nil
	}

	window := r.source.MaxBlockRange()
	events, err := r.query(ctx, head, window, player)
	if err != nil {
		// Some providers reject even advertised ranges under load.
		// One retry with a quarter of the window before giving up.
		retry := window / 4
		if retry == 0 {
			retry = 1
		}
		r.logger.Debug().Err(err).Uint64("window", retry).Msg("retrying history query with narrower window")
		events, err = r.query(ctx, head, retry, player)
		if err != nil {
			r.logger.Warn().Err(err).Msg("history unavailable")
			return nil
		}
	}

	outcomes := make([]game.Outcome, 0, len(events))
	// Oldest-first query order; reverse for newest-first display.
	for i := len(events) - 1; i >= 0; i-- {
		outcomes = append(outcomes, outcomeFromEvent(events[i]))
		if len(outcomes) == r.depth {
			break
		}
	}
	return outcomes
}

func (r *Retriever) query(ctx context.Context, head, window uint64, player common.Address) ([]contract.GamePlayed, error) {
	from := uint64(0)
	if head >= window {
		from = head - window + 1
	}
	return r.source.FilterGamePlayed(ctx, from, head, &player)
}

func outcomeFromEvent(ev contract.GamePlayed) game.Outcome {
	return game.Outcome{
		Player:    ev.Player,
		GameID:    ev.GameID,
		Symbols:   ev.Symbols,
		BetAmount: ev.BetAmount,
		WinAmount: ev.WinAmount,
		TxHash:    ev.TxHash,
		Block:     ev.BlockNumber,
		Source:    game.SourceDecoded,
	}
}
