package contract

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// GamePlayedID returns the event signature hash used to match receipt logs.
func (g *Gateway) GamePlayedID() common.Hash {
	return g.gamePlayedID
}

// DecodeGamePlayed decodes a single log into a GamePlayed event. Returns an
// error if the log is not a GamePlayed emission from the game contract.
func (g *Gateway) DecodeGamePlayed(lg ethtypes.Log) (*GamePlayed, error) {
	if lg.Address != g.gameAddr {
		return nil, fmt.Errorf("log emitted by %s, not the game contract", lg.Address.Hex())
	}
	if len(lg.Topics) < 3 || lg.Topics[0] != g.gamePlayedID {
		return nil, fmt.Errorf("log is not a GamePlayed event")
	}

	var data struct {
		Symbols       [3]uint8
		BetAmount     *big.Int
		WinAmount     *big.Int
		TokenContract common.Address
	}
	if err := g.gameABI.UnpackIntoInterface(&data, "GamePlayed", lg.Data); err != nil {
		return nil, fmt.Errorf("failed to decode GamePlayed data: %w", err)
	}

	return &GamePlayed{
		Player:        common.BytesToAddress(lg.Topics[1].Bytes()),
		GameID:        new(big.Int).SetBytes(lg.Topics[2].Bytes()),
		Symbols:       data.Symbols,
		BetAmount:     data.BetAmount,
		WinAmount:     data.WinAmount,
		TokenContract: data.TokenContract,
		BlockNumber:   lg.BlockNumber,
		TxHash:        lg.TxHash,
	}, nil
}

// FindGamePlayed scans a receipt's logs for the GamePlayed emission.
// Returns nil when the receipt carries no matching log.
func (g *Gateway) FindGamePlayed(receipt *ethtypes.Receipt) *GamePlayed {
	if receipt == nil {
		return nil
	}
	for _, lg := range receipt.Logs {
		if lg == nil {
			continue
		}
		ev, err := g.DecodeGamePlayed(*lg)
		if err == nil {
			return ev
		}
	}
	return nil
}

// FilterGamePlayed queries GamePlayed logs over [fromBlock, toBlock],
// clamped to the provider's block range limit. Player filtering is done
// client-side because indexed-topic filter support varies by RPC. Results
// are ordered oldest first.
func (g *Gateway) FilterGamePlayed(ctx context.Context, fromBlock, toBlock uint64, player *common.Address) ([]GamePlayed, error) {
	if toBlock < fromBlock {
		return nil, fmt.Errorf("invalid block range %d-%d", fromBlock, toBlock)
	}
	if toBlock-fromBlock+1 > g.maxRange {
		fromBlock = toBlock - g.maxRange + 1
	}

	logs, err := g.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{g.gameAddr},
		Topics:    [][]common.Hash{{g.gamePlayedID}},
	})
	if err != nil {
		return nil, classifyRPCError(err, "getLogs")
	}

	events := make([]GamePlayed, 0, len(logs))
	for _, lg := range logs {
		ev, err := g.DecodeGamePlayed(lg)
		if err != nil {
			g.logger.Debug().Err(err).Uint64("block", lg.BlockNumber).Msg("skipping undecodable log")
			continue
		}
		if player != nil && ev.Player != *player {
			continue
		}
		events = append(events, *ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].BlockNumber < events[j].BlockNumber
	})
	return events, nil
}
