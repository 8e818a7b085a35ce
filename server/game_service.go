package server

import (
	"context"
	"math/big"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/config"
	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/db/redis"
	"github.com/PixelPet-dev/xlayerslot/errors"
	"github.com/PixelPet-dev/xlayerslot/game"
	"github.com/PixelPet-dev/xlayerslot/history"
	"github.com/PixelPet-dev/xlayerslot/presentation"
	"github.com/PixelPet-dev/xlayerslot/session"
)

// ChainReader is the read surface the service needs beyond the bet
// orchestrator.
type ChainReader interface {
	Account() common.Address
	GameConfig(ctx context.Context) (*contract.GameConfig, error)
	Users(ctx context.Context, addr common.Address) (*contract.UserProfile, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	GetQuickBetOptions(ctx context.Context) ([]*big.Int, error)
	GetAllPayoutRates(ctx context.Context) ([8]*big.Int, error)
	TokenInfo(ctx context.Context) (*contract.TokenInfo, error)
	PrizePool(ctx context.Context) (*big.Int, error)
	SimulateLottery(ctx context.Context, seed *big.Int) ([3]uint8, error)
}

// GameService is the application layer between HTTP handlers and the
// game pipeline.
type GameService struct {
	orchestrator *game.Orchestrator
	reader       ChainReader
	sessions     *session.Manager
	retriever    *history.Retriever
	profiles     *redis.ProfileCache
	network      config.NetworkConfig
	logger       zerolog.Logger

	// lastGen tracks the session generation the ring's contents belong to.
	lastGen atomic.Uint64
}

// ServiceOptions wires the service. Profiles is optional.
type ServiceOptions struct {
	Orchestrator *game.Orchestrator
	Reader       ChainReader
	Sessions     *session.Manager
	Retriever    *history.Retriever
	Profiles     *redis.ProfileCache
	Network      config.NetworkConfig
	Logger       zerolog.Logger
}

func NewGameService(opts ServiceOptions) *GameService {
	s := &GameService{
		orchestrator: opts.Orchestrator,
		reader:       opts.Reader,
		sessions:     opts.Sessions,
		retriever:    opts.Retriever,
		profiles:     opts.Profiles,
		network:      opts.Network,
		logger:       opts.Logger.With().Str("component", "game_service").Logger(),
	}
	if s.sessions != nil {
		s.lastGen.Store(s.sessions.Generation())
		s.sessions.Subscribe(s.onSessionChange)
	}
	return s
}

// onSessionChange drops per-player derived state whenever the session
// identity advances. Outcomes recorded under a previous account or chain
// must never surface for the current one.
func (s *GameService) onSessionChange(snap session.Snapshot) {
	prev := s.lastGen.Swap(snap.Generation)
	if prev == snap.Generation {
		return
	}
	s.orchestrator.Ring().Clear()
	s.logger.Info().
		Uint64("generation", snap.Generation).
		Msg("session identity changed, recent outcomes dropped")
}

// ConfigView is the aggregate the game surface loads on open.
type ConfigView struct {
	MinBet      string              `json:"min_bet"`
	MaxBet      string              `json:"max_bet"`
	HouseFee    string              `json:"house_fee"`
	IsActive    bool                `json:"is_active"`
	QuickBets   []string            `json:"quick_bets"`
	PayoutRates map[string]string   `json:"payout_rates"`
	Token       *contract.TokenInfo `json:"token"`
	PrizePool   string              `json:"prize_pool"`
	ChainID     uint64              `json:"chain_id"`
	ChainName   string              `json:"chain_name"`
}

// Config aggregates the contract's bet bounds, presets, payout table,
// token metadata, and prize pool.
func (s *GameService) Config(ctx context.Context) (*ConfigView, error) {
	cfg, err := s.reader.GameConfig(ctx)
	if err != nil {
		return nil, err
	}
	quickBets, err := s.reader.GetQuickBetOptions(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := s.reader.GetAllPayoutRates(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.reader.TokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	pool, err := s.reader.PrizePool(ctx)
	if err != nil {
		return nil, err
	}

	view := &ConfigView{
		MinBet:    contract.FormatAmount(cfg.MinBet),
		MaxBet:    contract.FormatAmount(cfg.MaxBet),
		HouseFee:  cfg.HouseFeePercentage.String(),
		IsActive:  cfg.IsActive,
		Token:     token,
		PrizePool: contract.FormatAmount(pool),
		ChainID:   s.network.ChainID,
		ChainName: s.network.ChainName,
	}
	for _, b := range quickBets {
		view.QuickBets = append(view.QuickBets, contract.FormatAmount(b))
	}
	view.PayoutRates = make(map[string]string, len(rates))
	for i, r := range rates {
		view.PayoutRates[presentation.SymbolName(uint8(i))] = r.String()
	}
	return view, nil
}

// PlayResult pairs the resolved outcome with its reveal plan.
type PlayResult struct {
	Outcome *game.Outcome       `json:"outcome"`
	Reveal  presentation.Reveal `json:"reveal"`
}

// Play parses and places a bet. A degraded resolution still returns the
// placeholder result alongside the error code so the surface can show
// the confirmed-but-unresolved state.
func (s *GameService) Play(ctx context.Context, amount string) (*PlayResult, error) {
	bet, err := contract.ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	outcome, err := s.orchestrator.Play(ctx, bet)
	if outcome == nil {
		return nil, err
	}
	s.invalidateProfile(ctx)
	return &PlayResult{
		Outcome: outcome,
		Reveal:  presentation.PlanReveal(*outcome),
	}, err
}

// History returns the player's recent plays, preferring the in-memory
// ring and reconciling placeholders against refreshed logs.
func (s *GameService) History(ctx context.Context) []game.Outcome {
	player := s.reader.Account()

	fetched := s.retriever.Recent(ctx, player)
	if len(fetched) > 0 {
		s.orchestrator.Reconcile(fetched)
	}

	ring := s.orchestrator.Ring().Snapshot()
	if len(ring) > 0 {
		return ring
	}
	return fetched
}

// Profile reads the player's on-chain profile through the cache.
func (s *GameService) Profile(ctx context.Context) (*contract.UserProfile, error) {
	player := s.reader.Account()

	if s.profiles != nil {
		if cached := s.profiles.Get(ctx, player); cached != nil {
			return cached, nil
		}
	}
	profile, err := s.reader.Users(ctx, player)
	if err != nil {
		return nil, err
	}
	if s.profiles != nil {
		s.profiles.Put(ctx, player, profile)
	}
	return profile, nil
}

// Register submits a registration and invalidates the cached profile.
func (s *GameService) Register(ctx context.Context, nickname string) (common.Hash, error) {
	txHash, err := s.orchestrator.Register(ctx, nickname)
	if err != nil {
		return txHash, err
	}
	s.invalidateProfile(ctx)
	return txHash, nil
}

// Claim submits a rewards claim and invalidates the cached profile.
func (s *GameService) Claim(ctx context.Context) (common.Hash, error) {
	txHash, err := s.orchestrator.Claim(ctx)
	if err != nil {
		return txHash, err
	}
	s.invalidateProfile(ctx)
	return txHash, nil
}

// Balance reads the player's token balance.
func (s *GameService) Balance(ctx context.Context) (string, error) {
	balance, err := s.reader.BalanceOf(ctx, s.reader.Account())
	if err != nil {
		return "", err
	}
	return contract.FormatAmount(balance), nil
}

// SimulateView is a preview spin; display only, never a real outcome.
type SimulateView struct {
	Symbols [3]string `json:"symbols"`
}

// Simulate runs the contract's pure preview with a random seed.
func (s *GameService) Simulate(ctx context.Context) (*SimulateView, error) {
	seed := new(big.Int).SetInt64(rand.New(rand.NewSource(time.Now().UnixNano())).Int63())
	symbols, err := s.reader.SimulateLottery(ctx, seed)
	if err != nil {
		return nil, err
	}
	return &SimulateView{
		Symbols: [3]string{
			presentation.SymbolName(symbols[0]),
			presentation.SymbolName(symbols[1]),
			presentation.SymbolName(symbols[2]),
		},
	}, nil
}

// Session returns the current wallet session snapshot.
func (s *GameService) Session() session.Snapshot {
	return s.sessions.Snapshot()
}

// Connect runs the wallet connection flow.
func (s *GameService) Connect(ctx context.Context) (session.Snapshot, error) {
	return s.sessions.Connect(ctx)
}

// Disconnect drops the local session; the session-change subscription
// clears per-player state.
func (s *GameService) Disconnect() session.Snapshot {
	return s.sessions.Disconnect()
}

// ValidateConnected rejects requests while no session is live.
func (s *GameService) ValidateConnected() error {
	snap := s.sessions.Snapshot()
	if !snap.Connected() {
		if snap.State == session.StateWrongNetwork {
			return errors.New(errors.ErrNetworkMismatch, "wallet is on the wrong network")
		}
		return errors.New(errors.ErrNoWalletFound, "no wallet session")
	}
	return nil
}

func (s *GameService) invalidateProfile(ctx context.Context) {
	if s.profiles != nil {
		s.profiles.Invalidate(ctx, s.reader.Account())
	}
}
