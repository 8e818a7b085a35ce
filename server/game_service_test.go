package server

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/chain"
	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/game"
	"github.com/PixelPet-dev/xlayerslot/history"
	"github.com/PixelPet-dev/xlayerslot/session"
)

var (
	accountA = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	accountB = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
)

// walletStub scripts the wallet boundary for session lifecycle tests.
type walletStub struct {
	accounts []common.Address
	chainID  *big.Int

	onAccounts func([]common.Address)
	onChain    func(*big.Int)
}

func (w *walletStub) RequestAccounts(context.Context) ([]common.Address, error) {
	return w.accounts, nil
}

func (w *walletStub) Accounts(context.Context) ([]common.Address, error) {
	return w.accounts, nil
}

func (w *walletStub) ChainID(context.Context) (*big.Int, error) {
	return w.chainID, nil
}

func (w *walletStub) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (w *walletStub) SwitchChain(_ context.Context, chainID *big.Int) error {
	w.chainID = chainID
	return nil
}

func (w *walletStub) AddChain(context.Context, chain.NetworkDescriptor) error { return nil }

func (w *walletStub) OnAccountsChanged(fn func([]common.Address)) func() {
	w.onAccounts = fn
	return func() { w.onAccounts = nil }
}

func (w *walletStub) OnChainChanged(fn func(*big.Int)) func() {
	w.onChain = fn
	return func() { w.onChain = nil }
}

func (w *walletStub) Close() {}

func (w *walletStub) fireAccountsChanged(accounts []common.Address) {
	w.accounts = accounts
	if w.onAccounts != nil {
		w.onAccounts(accounts)
	}
}

func (w *walletStub) fireChainChanged(chainID *big.Int) {
	w.chainID = chainID
	if w.onChain != nil {
		w.onChain(chainID)
	}
}

// stubReader satisfies ChainReader for tests that never touch the chain.
type stubReader struct {
	account common.Address
}

func (r stubReader) Account() common.Address { return r.account }

func (stubReader) GameConfig(context.Context) (*contract.GameConfig, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) Users(context.Context, common.Address) (*contract.UserProfile, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) GetQuickBetOptions(context.Context) ([]*big.Int, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) GetAllPayoutRates(context.Context) ([8]*big.Int, error) {
	return [8]*big.Int{}, fmt.Errorf("not scripted")
}

func (stubReader) TokenInfo(context.Context) (*contract.TokenInfo, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) PrizePool(context.Context) (*big.Int, error) {
	return nil, fmt.Errorf("not scripted")
}

func (stubReader) SimulateLottery(context.Context, *big.Int) ([3]uint8, error) {
	return [3]uint8{}, fmt.Errorf("not scripted")
}

// offlineSource makes the retriever degrade to an empty result.
type offlineSource struct{}

func (offlineSource) BlockNumber(context.Context) (uint64, error) {
	return 0, fmt.Errorf("rpc unavailable")
}

func (offlineSource) FilterGamePlayed(context.Context, uint64, uint64, *common.Address) ([]contract.GamePlayed, error) {
	return nil, fmt.Errorf("rpc unavailable")
}

func (offlineSource) MaxBlockRange() uint64 { return 100 }

func newSessionBackedService(t *testing.T) (*GameService, *game.Orchestrator, *walletStub, *session.Manager) {
	t.Helper()

	wallet := &walletStub{
		accounts: []common.Address{accountA},
		chainID:  big.NewInt(196),
	}
	desc := chain.DescriptorFor(196, "X Layer", "OKB", "OKB", 18,
		[]string{"https://rpc.example"}, []string{"https://explorer.example"})
	client := chain.NewClient(wallet, 196, desc, zerolog.Nop())
	sessions := session.NewManager(client, zerolog.Nop())

	orchestrator := game.NewOrchestrator(game.Options{
		Session: sessions,
		Ring:    game.NewRing(10),
		Logger:  zerolog.Nop(),
	})

	svc := NewGameService(ServiceOptions{
		Orchestrator: orchestrator,
		Reader:       stubReader{account: accountA},
		Sessions:     sessions,
		Retriever:    history.NewRetriever(offlineSource{}, 10, zerolog.Nop()),
		Logger:       zerolog.Nop(),
	})

	if _, err := sessions.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return svc, orchestrator, wallet, sessions
}

func decodedOutcome(player common.Address) game.Outcome {
	return game.Outcome{
		Player:    player,
		Symbols:   [3]uint8{6, 6, 6},
		BetAmount: big.NewInt(1e18),
		WinAmount: big.NewInt(5e18),
		TxHash:    common.HexToHash("0x9a01"),
		Block:     42,
		Source:    game.SourceDecoded,
	}
}

func TestHistoryDroppedOnAccountSwitch(t *testing.T) {
	svc, orchestrator, wallet, sessions := newSessionBackedService(t)

	orchestrator.Ring().Push(decodedOutcome(accountA))
	genBefore := sessions.Generation()

	wallet.fireAccountsChanged([]common.Address{accountB})

	if sessions.Generation() == genBefore {
		t.Fatal("expected account switch to advance the generation")
	}
	if got := orchestrator.Ring().Len(); got != 0 {
		t.Errorf("expected empty ring after account switch, got %d entries", got)
	}
	if plays := svc.History(context.Background()); len(plays) != 0 {
		t.Errorf("history after account switch served %d stale outcomes", len(plays))
	}
}

func TestHistoryDroppedOnChainChange(t *testing.T) {
	svc, orchestrator, wallet, _ := newSessionBackedService(t)

	orchestrator.Ring().Push(decodedOutcome(accountA))

	wallet.fireChainChanged(big.NewInt(1))

	if got := orchestrator.Ring().Len(); got != 0 {
		t.Errorf("expected empty ring after chain change, got %d entries", got)
	}
	if plays := svc.History(context.Background()); len(plays) != 0 {
		t.Errorf("history after chain change served %d stale outcomes", len(plays))
	}
}

func TestHistorySurvivesPlainReconnect(t *testing.T) {
	_, orchestrator, wallet, _ := newSessionBackedService(t)

	orchestrator.Ring().Push(decodedOutcome(accountA))

	// The same account reported again is not an identity change.
	wallet.fireAccountsChanged([]common.Address{accountA})

	if got := orchestrator.Ring().Len(); got != 1 {
		t.Errorf("expected ring to keep %d entry across a same-account event, got %d", 1, got)
	}
}
