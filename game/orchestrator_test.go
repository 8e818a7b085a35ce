package game

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/errors"
)

var (
	player  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	playTx  = common.HexToHash("0x9a7c")
	approve = common.HexToHash("0xa9e5")
)

// fakeGateway scripts the contract surface call by call and records the
// order of operations.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	config    *contract.GameConfig
	profile   *contract.UserProfile
	balance   *big.Int
	allowance *big.Int

	approveAmount *big.Int
	playErr       error

	playReceipt    *ethtypes.Receipt
	approveReceipt *ethtypes.Receipt
	receiptEvent   *contract.GamePlayed

	head         uint64
	replayEvents []contract.GamePlayed
	replayErr    error
	replayRanges [][2]uint64

	waitGate chan struct{}
}

func newFakeGateway() *fakeGateway {
	oneToken := big.NewInt(1e18)
	return &fakeGateway{
		config: &contract.GameConfig{
			MinBet:             big.NewInt(1e16),
			MaxBet:             new(big.Int).Mul(oneToken, big.NewInt(1000000)),
			HouseFeePercentage: big.NewInt(5),
			IsActive:           true,
		},
		profile:   &contract.UserProfile{IsRegistered: true, Nickname: "alice", PendingRewards: big.NewInt(0)},
		balance:   new(big.Int).Mul(oneToken, big.NewInt(100)),
		allowance: new(big.Int).Mul(oneToken, big.NewInt(100)),
		playReceipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(500),
		},
		approveReceipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(499),
		},
		head: 500,
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeGateway) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) Account() common.Address { return player }

func (f *fakeGateway) GameConfig(_ context.Context) (*contract.GameConfig, error) {
	f.record("gameConfig")
	return f.config, nil
}

func (f *fakeGateway) Users(_ context.Context, _ common.Address) (*contract.UserProfile, error) {
	f.record("users")
	return f.profile, nil
}

func (f *fakeGateway) BalanceOf(_ context.Context, _ common.Address) (*big.Int, error) {
	f.record("balanceOf")
	return f.balance, nil
}

func (f *fakeGateway) Allowance(_ context.Context, _ common.Address) (*big.Int, error) {
	f.record("allowance")
	return f.allowance, nil
}

func (f *fakeGateway) Approve(_ context.Context, amount *big.Int) (common.Hash, error) {
	f.record("approve")
	f.approveAmount = amount
	return approve, nil
}

func (f *fakeGateway) RegisterUser(_ context.Context, _ string) (common.Hash, error) {
	f.record("registerUser")
	return common.HexToHash("0x4e67"), nil
}

func (f *fakeGateway) PlayLottery(_ context.Context, _ *big.Int) (common.Hash, error) {
	f.record("playLottery")
	if f.playErr != nil {
		return common.Hash{}, f.playErr
	}
	return playTx, nil
}

func (f *fakeGateway) ClaimRewards(_ context.Context) (common.Hash, error) {
	f.record("claimRewards")
	return common.HexToHash("0xc1a1"), nil
}

func (f *fakeGateway) WaitMined(_ context.Context, txHash common.Hash, _ int, _ time.Duration) (*ethtypes.Receipt, error) {
	f.record("waitMined")
	if f.waitGate != nil {
		<-f.waitGate
	}
	if txHash == approve {
		return f.approveReceipt, nil
	}
	return f.playReceipt, nil
}

func (f *fakeGateway) FindGamePlayed(_ *ethtypes.Receipt) *contract.GamePlayed {
	f.record("findGamePlayed")
	return f.receiptEvent
}

func (f *fakeGateway) FilterGamePlayed(_ context.Context, from, to uint64, _ *common.Address) ([]contract.GamePlayed, error) {
	f.record("filterGamePlayed")
	f.replayRanges = append(f.replayRanges, [2]uint64{from, to})
	return f.replayEvents, f.replayErr
}

func (f *fakeGateway) BlockNumber(_ context.Context) (uint64, error) {
	return f.head, nil
}

// fakeSession is a settable generation counter.
type fakeSession struct {
	mu  sync.Mutex
	gen uint64
}

func (s *fakeSession) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *fakeSession) bump() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// recordingSink captures presentation events in order.
type recordingSink struct {
	mu       sync.Mutex
	spins    int
	outcomes []Outcome
	gw       *fakeGateway
	spinSeen func()
}

func (s *recordingSink) SpinStarted(_ *big.Int) {
	s.mu.Lock()
	s.spins++
	s.mu.Unlock()
	if s.gw != nil {
		s.gw.record("sink.spinStarted")
	}
	if s.spinSeen != nil {
		s.spinSeen()
	}
}

func (s *recordingSink) OutcomeReady(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	if s.gw != nil {
		s.gw.record("sink.outcomeReady")
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, o Outcome) error {
	p.mu.Lock()
	p.outcomes = append(p.outcomes, o)
	p.mu.Unlock()
	return nil
}

func fastTuning() Tuning {
	return Tuning{
		ApproveMultiplier: 10,
		ReceiptRetries:    2,
		ReceiptInterval:   time.Millisecond,
		ReplayWindow:      5,
	}
}

func newTestOrchestrator(gw *fakeGateway, session *fakeSession, sink Sink, pub Publisher, settled func()) *Orchestrator {
	return NewOrchestrator(Options{
		Gateway:   gw,
		Session:   session,
		Ring:      NewRing(10),
		Sink:      sink,
		Publisher: pub,
		Tuning:    fastTuning(),
		OnSettled: settled,
		Logger:    zerolog.Nop(),
	})
}

func decodedEvent(bet, win int64) *contract.GamePlayed {
	return &contract.GamePlayed{
		Player:      player,
		GameID:      big.NewInt(1),
		Symbols:     [3]uint8{4, 4, 4},
		BetAmount:   big.NewInt(bet),
		WinAmount:   big.NewInt(win),
		BlockNumber: 500,
		TxHash:      playTx,
	}
}

func TestPlayDecodedFromReceipt(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = decodedEvent(1e18, 3e18)
	sink := &recordingSink{gw: gw}
	pub := &recordingPublisher{}
	settled := 0

	o := newTestOrchestrator(gw, &fakeSession{}, sink, pub, func() { settled++ })

	outcome, err := o.Play(context.Background(), big.NewInt(1e18))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if outcome.Source != SourceDecoded {
		t.Errorf("expected decoded source, got %s", outcome.Source)
	}
	if !outcome.IsJackpot() {
		t.Error("three matching symbols with a win must be a jackpot")
	}
	if o.Ring().Len() != 1 {
		t.Errorf("expected 1 ring entry, got %d", o.Ring().Len())
	}
	if len(pub.outcomes) != 1 {
		t.Errorf("expected 1 published outcome, got %d", len(pub.outcomes))
	}
	if settled != 1 {
		t.Errorf("expected settle hook once, got %d", settled)
	}

	// The reels must not start before the wager is submitted.
	order := gw.callOrder()
	playIdx, spinIdx := -1, -1
	for i, call := range order {
		switch call {
		case "playLottery":
			playIdx = i
		case "sink.spinStarted":
			spinIdx = i
		}
	}
	if playIdx == -1 || spinIdx == -1 || spinIdx < playIdx {
		t.Errorf("spin must fire after submission, order %v", order)
	}
}

func TestPlaySkipsApprovalWhenAllowanceCovers(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = decodedEvent(1e18, 0)
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	if _, err := o.Play(context.Background(), big.NewInt(1e18)); err != nil {
		t.Fatalf("Play: %v", err)
	}
	for _, call := range gw.callOrder() {
		if call == "approve" {
			t.Fatal("approval must be skipped when allowance covers the bet")
		}
	}
}

func TestPlayApprovesTenfoldWhenAllowanceShort(t *testing.T) {
	gw := newFakeGateway()
	gw.allowance = big.NewInt(0)
	gw.receiptEvent = decodedEvent(1e18, 0)
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	bet := big.NewInt(1e18)
	if _, err := o.Play(context.Background(), bet); err != nil {
		t.Fatalf("Play: %v", err)
	}
	want := new(big.Int).Mul(bet, big.NewInt(10))
	if gw.approveAmount == nil || gw.approveAmount.Cmp(want) != 0 {
		t.Errorf("expected approval of %s, got %s", want, gw.approveAmount)
	}

	// Approval confirmation must precede submission.
	order := gw.callOrder()
	sawApproveWait := false
	for _, call := range order {
		if call == "waitMined" && !sawApproveWait {
			sawApproveWait = true
		}
		if call == "playLottery" && !sawApproveWait {
			t.Fatalf("bet submitted before approval confirmed: %v", order)
		}
	}
}

func TestPlayFailedApprovalAborts(t *testing.T) {
	gw := newFakeGateway()
	gw.allowance = big.NewInt(0)
	gw.approveReceipt = nil // never confirms
	sink := &recordingSink{}
	o := newTestOrchestrator(gw, &fakeSession{}, sink, nil, nil)

	_, err := o.Play(context.Background(), big.NewInt(1e18))
	if !errors.IsCode(err, errors.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	for _, call := range gw.callOrder() {
		if call == "playLottery" {
			t.Fatal("bet must not be submitted after a failed approval")
		}
	}
	if sink.spins != 0 {
		t.Error("spin must not fire when submission never happened")
	}
}

func TestPlayReplayFallback(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = nil
	gw.replayEvents = []contract.GamePlayed{*decodedEvent(1e18, 2e18)}
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	outcome, err := o.Play(context.Background(), big.NewInt(1e18))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if outcome.Source != SourceReplayed {
		t.Errorf("expected replayed source, got %s", outcome.Source)
	}
	if outcome.WinAmount.Cmp(big.NewInt(2e18)) != 0 {
		t.Errorf("expected replayed win amount, got %s", outcome.WinAmount)
	}
	if len(gw.replayRanges) != 1 {
		t.Fatalf("expected one replay query, got %d", len(gw.replayRanges))
	}
	if r := gw.replayRanges[0]; r[1]-r[0]+1 != 5 {
		t.Errorf("replay window must span 5 blocks, got %d-%d", r[0], r[1])
	}
}

func TestPlayPlaceholderOnResolutionFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = nil
	gw.replayErr = context.DeadlineExceeded
	pub := &recordingPublisher{}
	settled := 0
	o := newTestOrchestrator(gw, &fakeSession{}, nil, pub, func() { settled++ })

	bet := big.NewInt(1e18)
	outcome, err := o.Play(context.Background(), bet)
	if !errors.IsCode(err, errors.ErrResolutionDegraded) {
		t.Fatalf("expected degraded resolution, got %v", err)
	}
	if outcome == nil {
		t.Fatal("degraded play must still return the placeholder")
	}
	if outcome.Source != SourcePlaceholder {
		t.Errorf("expected placeholder source, got %s", outcome.Source)
	}
	if outcome.WinAmount.Sign() != 0 {
		t.Errorf("placeholder must show zero win, got %s", outcome.WinAmount)
	}
	if outcome.BetAmount.Cmp(bet) != 0 {
		t.Errorf("placeholder must keep the bet amount, got %s", outcome.BetAmount)
	}
	if o.Ring().Len() != 1 {
		t.Error("placeholder must still be recorded")
	}
	if settled != 1 {
		t.Error("settle hook must run for degraded outcomes too")
	}
}

func TestPlayStaleSessionDiscards(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = decodedEvent(1e18, 5e18)
	session := &fakeSession{}
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	settled := 0

	gw.waitGate = make(chan struct{})
	o := newTestOrchestrator(gw, session, sink, pub, func() { settled++ })

	done := make(chan error, 1)
	go func() {
		_, err := o.Play(context.Background(), big.NewInt(1e18))
		done <- err
	}()

	// Account switch while the transaction is confirming.
	time.Sleep(10 * time.Millisecond)
	session.bump()
	close(gw.waitGate)

	err := <-done
	if !errors.IsCode(err, errors.ErrStaleSession) {
		t.Fatalf("expected stale session, got %v", err)
	}
	if o.Ring().Len() != 0 {
		t.Error("stale outcome must not reach the ring")
	}
	if len(sink.outcomes) != 0 {
		t.Error("stale outcome must not reach the sink")
	}
	if len(pub.outcomes) != 0 {
		t.Error("stale outcome must not be published")
	}
	if settled != 0 {
		t.Error("settle hook must not run for stale outcomes")
	}
}

func TestPlayBusyGuard(t *testing.T) {
	gw := newFakeGateway()
	gw.receiptEvent = decodedEvent(1e18, 0)
	gw.waitGate = make(chan struct{})
	sink := &recordingSink{}
	o := newTestOrchestrator(gw, &fakeSession{}, sink, nil, nil)

	started := make(chan struct{})
	sink.spinSeen = func() { close(started) }

	done := make(chan error, 1)
	go func() {
		_, err := o.Play(context.Background(), big.NewInt(1e18))
		done <- err
	}()
	<-started

	if _, err := o.Play(context.Background(), big.NewInt(1e18)); !errors.IsCode(err, errors.ErrBusy) {
		t.Fatalf("expected busy rejection, got %v", err)
	}

	close(gw.waitGate)
	if err := <-done; err != nil {
		t.Fatalf("first play failed: %v", err)
	}

	// The guard releases once the first bet settles.
	if _, err := o.Play(context.Background(), big.NewInt(1e18)); err != nil {
		t.Fatalf("second play after settle: %v", err)
	}
}

func TestPlayValidation(t *testing.T) {
	oneToken := big.NewInt(1e18)

	tests := []struct {
		name     string
		mutate   func(*fakeGateway)
		bet      *big.Int
		wantCode int
	}{
		{"below minimum", func(*fakeGateway) {}, big.NewInt(1), errors.ErrValidation},
		{"above maximum", func(*fakeGateway) {}, new(big.Int).Mul(oneToken, big.NewInt(2000000)), errors.ErrValidation},
		{"zero bet", func(*fakeGateway) {}, big.NewInt(0), errors.ErrValidation},
		{"nil bet", func(*fakeGateway) {}, nil, errors.ErrValidation},
		{"game paused", func(g *fakeGateway) { g.config.IsActive = false }, oneToken, errors.ErrValidation},
		{"not registered", func(g *fakeGateway) { g.profile.IsRegistered = false }, oneToken, errors.ErrNotRegistered},
		{"insufficient balance", func(g *fakeGateway) { g.balance = big.NewInt(1) }, oneToken, errors.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			tt.mutate(gw)
			sink := &recordingSink{}
			o := newTestOrchestrator(gw, &fakeSession{}, sink, nil, nil)

			_, err := o.Play(context.Background(), tt.bet)
			if !errors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected code %d, got %v", tt.wantCode, err)
			}
			for _, call := range gw.callOrder() {
				if call == "playLottery" {
					t.Fatal("rejected bet must never be submitted")
				}
			}
			if sink.spins != 0 {
				t.Error("rejected bet must not start the reels")
			}
		})
	}
}

func TestPlaySubmissionFailureKeepsReelsStill(t *testing.T) {
	gw := newFakeGateway()
	gw.playErr = errors.New(errors.ErrUserRejected, "transaction rejected in wallet")
	sink := &recordingSink{}
	o := newTestOrchestrator(gw, &fakeSession{}, sink, nil, nil)

	_, err := o.Play(context.Background(), big.NewInt(1e18))
	if !errors.IsUserRejected(err) {
		t.Fatalf("expected user rejection, got %v", err)
	}
	if sink.spins != 0 {
		t.Error("spin must not fire when submission failed")
	}
	if o.Ring().Len() != 0 {
		t.Error("failed submission must leave no history entry")
	}
}

func TestReconcileUpgradesPlaceholders(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	placeholder := Outcome{
		Player:    player,
		BetAmount: big.NewInt(1e18),
		WinAmount: big.NewInt(0),
		TxHash:    playTx,
		Source:    SourcePlaceholder,
	}
	o.Ring().Push(placeholder)

	real := Outcome{
		Player:    player,
		Symbols:   [3]uint8{7, 7, 7},
		BetAmount: big.NewInt(1e18),
		WinAmount: big.NewInt(9e18),
		TxHash:    playTx,
		Source:    SourceDecoded,
	}
	if n := o.Reconcile([]Outcome{real}); n != 1 {
		t.Fatalf("expected 1 upgrade, got %d", n)
	}
	snap := o.Ring().Snapshot()
	if snap[0].Source != SourceDecoded {
		t.Errorf("expected upgraded source, got %s", snap[0].Source)
	}

	// Placeholders in the refresh never overwrite anything.
	if n := o.Reconcile([]Outcome{placeholder}); n != 0 {
		t.Errorf("placeholder input must not upgrade, got %d", n)
	}
}

func TestRegisterValidation(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	if _, err := o.Register(context.Background(), ""); !errors.IsValidation(err) {
		t.Errorf("empty nickname must be rejected, got %v", err)
	}
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := o.Register(context.Background(), string(long)); !errors.IsValidation(err) {
		t.Errorf("oversized nickname must be rejected, got %v", err)
	}
	if _, err := o.Register(context.Background(), "alice"); err != nil {
		t.Errorf("valid nickname rejected: %v", err)
	}
}

func TestClaimRequiresPendingRewards(t *testing.T) {
	gw := newFakeGateway()
	o := newTestOrchestrator(gw, &fakeSession{}, nil, nil, nil)

	if _, err := o.Claim(context.Background()); !errors.IsValidation(err) {
		t.Errorf("claim with zero rewards must be rejected, got %v", err)
	}

	gw.profile.PendingRewards = big.NewInt(1e18)
	if _, err := o.Claim(context.Background()); err != nil {
		t.Errorf("claim with pending rewards failed: %v", err)
	}
}
