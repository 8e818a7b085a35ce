// Package contract provides the typed call/send surface over the lottery
// game contract and its fungible token.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/chain"
	apperrors "github.com/PixelPet-dev/xlayerslot/errors"
)

// Backend is the minimal node surface the gateway needs. *ethclient.Client
// satisfies it; tests substitute a fake.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Options configures a Gateway.
type Options struct {
	GameAddress  common.Address
	TokenAddress common.Address
	ChainID      uint64
	// MaxBlockRange is the provider's log query limit (100 blocks on the
	// observed deployment's RPC). The gateway clamps single queries to it;
	// multi-window chunking is the history retriever's job.
	MaxBlockRange uint64
	Logger        zerolog.Logger
}

// Gateway exposes typed reads, writes, and log queries over the two
// contracts. Reads are side-effect free and not retried here; retry policy
// belongs to callers.
type Gateway struct {
	backend Backend
	signer  chain.Signer

	gameABI  abi.ABI
	tokenABI abi.ABI

	gameAddr     common.Address
	tokenAddr    common.Address
	chainID      *big.Int
	maxRange     uint64
	gamePlayedID common.Hash

	logger zerolog.Logger
}

// NewGateway parses the embedded ABIs and binds the deployment addresses.
func NewGateway(backend Backend, signer chain.Signer, opts Options) (*Gateway, error) {
	gameABI, err := abi.JSON(strings.NewReader(lotteryGameABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse game ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	maxRange := opts.MaxBlockRange
	if maxRange == 0 {
		maxRange = 100
	}
	return &Gateway{
		backend:      backend,
		signer:       signer,
		gameABI:      gameABI,
		tokenABI:     tokenABI,
		gameAddr:     opts.GameAddress,
		tokenAddr:    opts.TokenAddress,
		chainID:      new(big.Int).SetUint64(opts.ChainID),
		maxRange:     maxRange,
		gamePlayedID: gameABI.Events["GamePlayed"].ID,
		logger:       opts.Logger.With().Str("component", "contract_gateway").Logger(),
	}, nil
}

// GameAddress returns the game contract address.
func (g *Gateway) GameAddress() common.Address { return g.gameAddr }

// TokenAddress returns the token contract address.
func (g *Gateway) TokenAddress() common.Address { return g.tokenAddr }

// Account returns the signing account.
func (g *Gateway) Account() common.Address { return g.signer.Address() }

// MaxBlockRange returns the provider's advertised log range limit.
func (g *Gateway) MaxBlockRange() uint64 { return g.maxRange }

// --- reads ---

func (g *Gateway) call(ctx context.Context, target common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	result, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &target,
		Data: data,
	}, nil)
	if err != nil {
		return nil, classifyRPCError(err, method)
	}
	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return out, nil
}

// GameConfig reads the contract's bet bounds and active flag.
func (g *Gateway) GameConfig(ctx context.Context) (*GameConfig, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "gameConfig")
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("gameConfig: expected 4 outputs, got %d", len(out))
	}
	return &GameConfig{
		MinBet:             out[0].(*big.Int),
		MaxBet:             out[1].(*big.Int),
		HouseFeePercentage: out[2].(*big.Int),
		IsActive:           out[3].(bool),
	}, nil
}

// Users reads the on-chain profile for an address.
func (g *Gateway) Users(ctx context.Context, addr common.Address) (*UserProfile, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "users", addr)
	if err != nil {
		return nil, err
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("users: expected 7 outputs, got %d", len(out))
	}
	return &UserProfile{
		IsRegistered:     out[0].(bool),
		Nickname:         out[1].(string),
		RegistrationTime: out[2].(*big.Int),
		TotalBets:        out[3].(*big.Int),
		TotalWins:        out[4].(*big.Int),
		GamesPlayed:      out[5].(*big.Int),
		PendingRewards:   out[6].(*big.Int),
	}, nil
}

// CurrentToken reads the token contract the game currently accepts.
func (g *Gateway) CurrentToken(ctx context.Context) (common.Address, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "currentToken")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// GetQuickBetOptions reads the contract's preset wager amounts.
func (g *Gateway) GetQuickBetOptions(ctx context.Context) ([]*big.Int, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "getQuickBetOptions")
	if err != nil {
		return nil, err
	}
	return out[0].([]*big.Int), nil
}

// GetAllPayoutRates reads the per-symbol payout rates (basis-100).
func (g *Gateway) GetAllPayoutRates(ctx context.Context) ([8]*big.Int, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "getAllPayoutRates")
	if err != nil {
		return [8]*big.Int{}, err
	}
	return out[0].([8]*big.Int), nil
}

// SimulateLottery runs the contract's pure preview call. Display only,
// never a source of real outcomes.
func (g *Gateway) SimulateLottery(ctx context.Context, seed *big.Int) ([3]uint8, error) {
	out, err := g.call(ctx, g.gameAddr, g.gameABI, "simulateLottery", seed)
	if err != nil {
		return [3]uint8{}, err
	}
	return out[0].([3]uint8), nil
}

// BalanceOf reads the token balance of an address.
func (g *Gateway) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, g.tokenAddr, g.tokenABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance reads how much the game contract may spend for owner.
func (g *Gateway) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, g.tokenAddr, g.tokenABI, "allowance", owner, g.gameAddr)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TokenInfo reads the token's display metadata.
func (g *Gateway) TokenInfo(ctx context.Context) (*TokenInfo, error) {
	name, err := g.call(ctx, g.tokenAddr, g.tokenABI, "name")
	if err != nil {
		return nil, err
	}
	symbol, err := g.call(ctx, g.tokenAddr, g.tokenABI, "symbol")
	if err != nil {
		return nil, err
	}
	decimals, err := g.call(ctx, g.tokenAddr, g.tokenABI, "decimals")
	if err != nil {
		return nil, err
	}
	return &TokenInfo{
		Address:  g.tokenAddr,
		Name:     name[0].(string),
		Symbol:   symbol[0].(string),
		Decimals: decimals[0].(uint8),
	}, nil
}

// PrizePool reads the game contract's own token balance.
func (g *Gateway) PrizePool(ctx context.Context) (*big.Int, error) {
	return g.balanceOfAddress(ctx, g.gameAddr)
}

func (g *Gateway) balanceOfAddress(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, g.tokenAddr, g.tokenABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// --- writes ---

// send estimates gas, fetches the current price, signs, and submits a
// transaction. Gas is padded by 20% against estimation error.
func (g *Gateway) send(ctx context.Context, to common.Address, data []byte, method string) (common.Hash, error) {
	from := g.signer.Address()

	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, classifyRPCError(err, method)
	}

	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, classifyRPCError(err, method)
	}

	estimate, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		// Reverts usually surface here, before anything is signed.
		return common.Hash{}, classifyRPCError(err, method)
	}
	// 20% headroom over the estimate.
	gasLimit := estimate + estimate/5

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := g.signer.SignTx(tx, g.chainID)
	if err != nil {
		return common.Hash{}, apperrors.Wrap(err, apperrors.ErrUserRejected, "transaction signature declined")
	}

	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, classifyRPCError(err, method)
	}

	g.logger.Info().
		Str("method", method).
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("gas_limit", gasLimit).
		Msg("transaction submitted")

	return signed.Hash(), nil
}

// Approve authorizes the game contract to spend amount of the token.
func (g *Gateway) Approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	data, err := g.tokenABI.Pack("approve", g.gameAddr, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode approve: %w", err)
	}
	return g.send(ctx, g.tokenAddr, data, "approve")
}

// RegisterUser submits the registration transaction.
func (g *Gateway) RegisterUser(ctx context.Context, nickname string) (common.Hash, error) {
	data, err := g.gameABI.Pack("registerUser", nickname)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode registerUser: %w", err)
	}
	return g.send(ctx, g.gameAddr, data, "registerUser")
}

// PlayLottery submits the wager transaction.
func (g *Gateway) PlayLottery(ctx context.Context, betAmount *big.Int) (common.Hash, error) {
	data, err := g.gameABI.Pack("playLottery", betAmount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode playLottery: %w", err)
	}
	return g.send(ctx, g.gameAddr, data, "playLottery")
}

// ClaimRewards submits the claim transaction.
func (g *Gateway) ClaimRewards(ctx context.Context) (common.Hash, error) {
	data, err := g.gameABI.Pack("claimRewards")
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode claimRewards: %w", err)
	}
	return g.send(ctx, g.gameAddr, data, "claimRewards")
}

// TransactionReceipt looks up a receipt once; nil receipt with nil error
// means not yet mined. Bounded polling belongs to callers.
func (g *Gateway) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := g.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, classifyRPCError(err, "receipt")
	}
	return receipt, nil
}

// WaitMined polls for a receipt with a bounded retry budget. A nil receipt
// after exhaustion is not an error: the transaction may still land later.
func (g *Gateway) WaitMined(ctx context.Context, txHash common.Hash, retries int, interval time.Duration) (*ethtypes.Receipt, error) {
	for attempt := 0; attempt < retries; attempt++ {
		receipt, err := g.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil {
			g.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("receipt lookup failed")
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout, "confirmation wait cancelled")
		case <-time.After(interval):
		}
	}
	return nil, nil
}

// BlockNumber returns the current head block.
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return 0, classifyRPCError(err, "blockNumber")
	}
	return head, nil
}
