package game

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/errors"
)

// Phase tracks a bet through its lifecycle. Exactly one bet is in flight
// at a time; a second submission while any non-terminal phase is active
// is rejected.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseApprovalPending
	PhaseAwaitingSignature
	PhaseAwaitingConfirmation
	PhaseResolvingOutcome
	PhaseSettled
	PhaseDegraded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseApprovalPending:
		return "approval_pending"
	case PhaseAwaitingSignature:
		return "awaiting_signature"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	case PhaseResolvingOutcome:
		return "resolving_outcome"
	case PhaseSettled:
		return "settled"
	case PhaseDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Gateway is the contract surface the orchestrator drives.
type Gateway interface {
	Account() common.Address
	GameConfig(ctx context.Context) (*contract.GameConfig, error)
	Users(ctx context.Context, addr common.Address) (*contract.UserProfile, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
	Approve(ctx context.Context, amount *big.Int) (common.Hash, error)
	RegisterUser(ctx context.Context, nickname string) (common.Hash, error)
	PlayLottery(ctx context.Context, betAmount *big.Int) (common.Hash, error)
	ClaimRewards(ctx context.Context) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash, retries int, interval time.Duration) (*ethtypes.Receipt, error)
	FindGamePlayed(receipt *ethtypes.Receipt) *contract.GamePlayed
	FilterGamePlayed(ctx context.Context, fromBlock, toBlock uint64, player *common.Address) ([]contract.GamePlayed, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// SessionState exposes the session generation so outcomes resolved for a
// previous account or chain are never applied to the current one.
type SessionState interface {
	Generation() uint64
}

// Sink receives presentation events. SpinStarted fires only once the
// wager transaction is actually submitted, never before.
type Sink interface {
	SpinStarted(bet *big.Int)
	OutcomeReady(Outcome)
}

// Publisher pushes settled outcomes to downstream consumers. Publish
// failures never affect bet settlement.
type Publisher interface {
	PublishOutcome(ctx context.Context, o Outcome) error
}

// Tuning bounds the orchestrator's retry and fallback behavior.
type Tuning struct {
	ApproveMultiplier int64
	ReceiptRetries    int
	ReceiptInterval   time.Duration
	ReplayWindow      uint64
}

// DefaultTuning mirrors the values the production deployment runs with.
func DefaultTuning() Tuning {
	return Tuning{
		ApproveMultiplier: 10,
		ReceiptRetries:    10,
		ReceiptInterval:   2 * time.Second,
		ReplayWindow:      5,
	}
}

// PhaseListener observes phase transitions for the active bet.
type PhaseListener func(Phase)

// Orchestrator runs the bet pipeline: validate, approve when the
// allowance is short, submit, confirm, and resolve the outcome with a
// three-step fallback (receipt log, recent-log replay, placeholder).
type Orchestrator struct {
	gateway   Gateway
	session   SessionState
	ring      *Ring
	sink      Sink
	publisher Publisher
	tuning    Tuning
	logger    zerolog.Logger

	busy  atomic.Bool
	phase atomic.Int32

	// onSettled runs after every terminal outcome, stale or not on the
	// caller side but only applied for live generations. Used to refresh
	// balances regardless of how resolution went.
	onSettled func()

	listMu    sync.Mutex
	listeners []PhaseListener
}

// Options wires the orchestrator's collaborators. Sink, Publisher, and
// OnSettled are optional.
type Options struct {
	Gateway   Gateway
	Session   SessionState
	Ring      *Ring
	Sink      Sink
	Publisher Publisher
	Tuning    Tuning
	OnSettled func()
	Logger    zerolog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	tuning := opts.Tuning
	if tuning.ReceiptRetries == 0 {
		tuning = DefaultTuning()
	}
	ring := opts.Ring
	if ring == nil {
		ring = NewRing(DefaultRingDepth)
	}
	return &Orchestrator{
		gateway:   opts.Gateway,
		session:   opts.Session,
		ring:      ring,
		sink:      opts.Sink,
		publisher: opts.Publisher,
		tuning:    tuning,
		onSettled: opts.OnSettled,
		logger:    opts.Logger.With().Str("component", "bet_orchestrator").Logger(),
	}
}

// Ring exposes the recent-outcome store.
func (o *Orchestrator) Ring() *Ring { return o.ring }

// Phase returns the current bet phase.
func (o *Orchestrator) Phase() Phase { return Phase(o.phase.Load()) }

// OnPhase registers a phase transition listener.
func (o *Orchestrator) OnPhase(fn PhaseListener) {
	o.listMu.Lock()
	o.listeners = append(o.listeners, fn)
	o.listMu.Unlock()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase.Store(int32(p))
	o.listMu.Lock()
	fns := append([]PhaseListener(nil), o.listeners...)
	o.listMu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

// Play runs one complete bet. It returns the resolved outcome, which may
// be degraded (placeholder) when the transaction confirmed but its result
// could not be recovered. ErrBusy is returned while another bet is in
// flight; ErrStaleSession when the session changed mid-flight, in which
// case nothing is applied to local state.
func (o *Orchestrator) Play(ctx context.Context, bet *big.Int) (*Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrBusy, "a bet is already in progress")
	}
	defer func() {
		o.busy.Store(false)
		o.setPhase(PhaseIdle)
	}()

	generation := o.session.Generation()
	player := o.gateway.Account()
	log := o.logger.With().Str("player", player.Hex()).Logger()

	o.setPhase(PhaseValidating)
	if err := o.validate(ctx, player, bet); err != nil {
		return nil, err
	}

	if err := o.ensureAllowance(ctx, player, bet); err != nil {
		return nil, err
	}

	o.setPhase(PhaseAwaitingSignature)
	txHash, err := o.gateway.PlayLottery(ctx, bet)
	if err != nil {
		return nil, err
	}
	log.Info().Str("tx_hash", txHash.Hex()).Str("bet", bet.String()).Msg("bet submitted")

	// The reels start only now that the wager is actually on the wire.
	if o.sink != nil {
		o.sink.SpinStarted(bet)
	}

	o.setPhase(PhaseAwaitingConfirmation)
	receipt, err := o.gateway.WaitMined(ctx, txHash, o.tuning.ReceiptRetries, o.tuning.ReceiptInterval)
	if err != nil {
		return nil, err
	}
	if receipt != nil && receipt.Status == ethtypes.ReceiptStatusFailed {
		return nil, errors.New(errors.ErrContractReverted, "bet transaction reverted")
	}

	o.setPhase(PhaseResolvingOutcome)
	outcome := o.resolve(ctx, player, bet, txHash, receipt, log)

	if o.session.Generation() != generation {
		log.Warn().Str("tx_hash", txHash.Hex()).Msg("session changed mid-bet, discarding outcome")
		return nil, errors.New(errors.ErrStaleSession, "session changed while the bet was in flight")
	}

	o.apply(ctx, outcome, log)

	if outcome.Degraded() {
		o.setPhase(PhaseDegraded)
		return &outcome, errors.New(errors.ErrResolutionDegraded, "bet confirmed but outcome could not be resolved")
	}
	o.setPhase(PhaseSettled)
	return &outcome, nil
}

func (o *Orchestrator) validate(ctx context.Context, player common.Address, bet *big.Int) error {
	if bet == nil || bet.Sign() <= 0 {
		return errors.New(errors.ErrValidation, "bet amount must be positive")
	}

	cfg, err := o.gateway.GameConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.IsActive {
		return errors.New(errors.ErrValidation, "the game is paused")
	}
	if bet.Cmp(cfg.MinBet) < 0 {
		return errors.Newf(errors.ErrValidation, "bet below the minimum of %s", contract.FormatAmount(cfg.MinBet))
	}
	if bet.Cmp(cfg.MaxBet) > 0 {
		return errors.Newf(errors.ErrValidation, "bet above the maximum of %s", contract.FormatAmount(cfg.MaxBet))
	}

	profile, err := o.gateway.Users(ctx, player)
	if err != nil {
		return err
	}
	if !profile.IsRegistered {
		return errors.New(errors.ErrNotRegistered, "register before placing a bet")
	}

	balance, err := o.gateway.BalanceOf(ctx, player)
	if err != nil {
		return err
	}
	if balance.Cmp(bet) < 0 {
		return errors.Newf(errors.ErrInsufficientFunds, "balance %s is below the bet", contract.FormatAmount(balance))
	}
	return nil
}

// ensureAllowance tops up the spending approval when it cannot cover the
// bet. The approval is sized at a multiple of the bet so repeat wagers at
// the same stake skip this step.
func (o *Orchestrator) ensureAllowance(ctx context.Context, player common.Address, bet *big.Int) error {
	allowance, err := o.gateway.Allowance(ctx, player)
	if err != nil {
		return err
	}
	if allowance.Cmp(bet) >= 0 {
		return nil
	}

	o.setPhase(PhaseApprovalPending)
	amount := contract.MulBy(bet, o.tuning.ApproveMultiplier)
	txHash, err := o.gateway.Approve(ctx, amount)
	if err != nil {
		return err
	}
	o.logger.Info().Str("tx_hash", txHash.Hex()).Str("amount", amount.String()).Msg("approval submitted")

	receipt, err := o.gateway.WaitMined(ctx, txHash, o.tuning.ReceiptRetries, o.tuning.ReceiptInterval)
	if err != nil {
		return err
	}
	if receipt == nil {
		return errors.New(errors.ErrTimeout, "approval was not confirmed in time")
	}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return errors.New(errors.ErrContractReverted, "approval transaction reverted")
	}
	return nil
}

// resolve recovers the play result. Order: the receipt's own log, then a
// replay of recent blocks, then a zero-win placeholder. Resolution never
// fails outright once the bet is on chain.
func (o *Orchestrator) resolve(ctx context.Context, player common.Address, bet *big.Int, txHash common.Hash, receipt *ethtypes.Receipt, log zerolog.Logger) Outcome {
	if ev := o.gateway.FindGamePlayed(receipt); ev != nil {
		return outcomeFromEvent(ev, SourceDecoded)
	}

	if ev := o.replay(ctx, player, txHash, log); ev != nil {
		log.Info().Str("tx_hash", txHash.Hex()).Msg("outcome recovered from log replay")
		return outcomeFromEvent(ev, SourceReplayed)
	}

	log.Warn().Str("tx_hash", txHash.Hex()).Msg("outcome unresolved, recording placeholder")
	var block uint64
	if receipt != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return Outcome{
		Player:    player,
		BetAmount: bet,
		WinAmount: big.NewInt(0),
		TxHash:    txHash,
		Block:     block,
		Source:    SourcePlaceholder,
	}
}

// replay queries the last few blocks for the player's GamePlayed events.
// A transaction-hash match is authoritative; otherwise the most recent
// event for the player is taken.
func (o *Orchestrator) replay(ctx context.Context, player common.Address, txHash common.Hash, log zerolog.Logger) *contract.GamePlayed {
	head, err := o.gateway.BlockNumber(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("replay skipped, head unavailable")
		return nil
	}

	from := uint64(0)
	if head >= o.tuning.ReplayWindow {
		from = head - o.tuning.ReplayWindow + 1
	}
	events, err := o.gateway.FilterGamePlayed(ctx, from, head, &player)
	if err != nil {
		log.Debug().Err(err).Msg("replay query failed")
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	for i := range events {
		if events[i].TxHash == txHash {
			return &events[i]
		}
	}
	latest := events[len(events)-1]
	return &latest
}

func outcomeFromEvent(ev *contract.GamePlayed, source Source) Outcome {
	return Outcome{
		Player:    ev.Player,
		GameID:    ev.GameID,
		Symbols:   ev.Symbols,
		BetAmount: ev.BetAmount,
		WinAmount: ev.WinAmount,
		TxHash:    ev.TxHash,
		Block:     ev.BlockNumber,
		Source:    source,
	}
}

// apply records a resolved outcome and fans it out. Runs only for live
// session generations.
func (o *Orchestrator) apply(ctx context.Context, outcome Outcome, log zerolog.Logger) {
	o.ring.Push(outcome)

	if o.sink != nil {
		o.sink.OutcomeReady(outcome)
	}
	if o.publisher != nil {
		if err := o.publisher.PublishOutcome(ctx, outcome); err != nil {
			log.Warn().Err(err).Msg("outcome publish failed")
		}
	}
	if o.onSettled != nil {
		o.onSettled()
	}
}

// Register submits and confirms a user registration.
func (o *Orchestrator) Register(ctx context.Context, nickname string) (common.Hash, error) {
	if nickname == "" {
		return common.Hash{}, errors.New(errors.ErrValidation, "nickname is required")
	}
	if len(nickname) > 50 {
		return common.Hash{}, errors.New(errors.ErrValidation, "nickname is limited to 50 characters")
	}

	txHash, err := o.gateway.RegisterUser(ctx, nickname)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := o.gateway.WaitMined(ctx, txHash, o.tuning.ReceiptRetries, o.tuning.ReceiptInterval)
	if err != nil {
		return txHash, err
	}
	if receipt != nil && receipt.Status == ethtypes.ReceiptStatusFailed {
		return txHash, errors.New(errors.ErrContractReverted, "registration reverted")
	}
	return txHash, nil
}

// Claim submits and confirms a pending-rewards claim.
func (o *Orchestrator) Claim(ctx context.Context) (common.Hash, error) {
	player := o.gateway.Account()
	profile, err := o.gateway.Users(ctx, player)
	if err != nil {
		return common.Hash{}, err
	}
	if profile.PendingRewards == nil || profile.PendingRewards.Sign() == 0 {
		return common.Hash{}, errors.New(errors.ErrValidation, "no rewards to claim")
	}

	txHash, err := o.gateway.ClaimRewards(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := o.gateway.WaitMined(ctx, txHash, o.tuning.ReceiptRetries, o.tuning.ReceiptInterval)
	if err != nil {
		return txHash, err
	}
	if receipt != nil && receipt.Status == ethtypes.ReceiptStatusFailed {
		return txHash, errors.New(errors.ErrContractReverted, "claim reverted")
	}
	return txHash, nil
}

// Reconcile merges refreshed history into the ring, upgrading any
// placeholder whose real outcome has since become visible in logs.
// Returns the number of upgraded entries.
func (o *Orchestrator) Reconcile(entries []Outcome) int {
	upgraded := 0
	for _, e := range entries {
		if e.Source == SourcePlaceholder {
			continue
		}
		if o.ring.UpgradePlaceholder(e.TxHash, e) {
			upgraded++
		}
	}
	if upgraded > 0 {
		o.logger.Info().Int("count", upgraded).Msg("placeholder outcomes upgraded from history")
	}
	return upgraded
}
