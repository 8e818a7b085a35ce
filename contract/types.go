package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GameConfig mirrors the contract's gameConfig() tuple.
type GameConfig struct {
	MinBet             *big.Int
	MaxBet             *big.Int
	HouseFeePercentage *big.Int
	IsActive           bool
}

// UserProfile mirrors the contract's users(address) record. The contract is
// the source of truth; this copy is a display cache and must never be used
// for authorization decisions.
type UserProfile struct {
	IsRegistered     bool     `json:"is_registered"`
	Nickname         string   `json:"nickname"`
	RegistrationTime *big.Int `json:"registration_time"`
	TotalBets        *big.Int `json:"total_bets"`
	TotalWins        *big.Int `json:"total_wins"`
	GamesPlayed      *big.Int `json:"games_played"`
	PendingRewards   *big.Int `json:"pending_rewards"`
}

// TokenInfo holds the fungible token's display metadata.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// GamePlayed is the decoded game outcome event.
type GamePlayed struct {
	Player        common.Address
	GameID        *big.Int
	Symbols       [3]uint8
	BetAmount     *big.Int
	WinAmount     *big.Int
	TokenContract common.Address
	BlockNumber   uint64
	TxHash        common.Hash
}
