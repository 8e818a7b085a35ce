package history

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
)

var player = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fakeSource struct {
	head     uint64
	headErr  error
	maxRange uint64

	events  []contract.GamePlayed
	errs    []error // consumed per query
	queries [][2]uint64
}

func (f *fakeSource) BlockNumber(_ context.Context) (uint64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeSource) FilterGamePlayed(_ context.Context, from, to uint64, _ *common.Address) ([]contract.GamePlayed, error) {
	f.queries = append(f.queries, [2]uint64{from, to})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.events, nil
}

func (f *fakeSource) MaxBlockRange() uint64 { return f.maxRange }

func event(block uint64, win int64) contract.GamePlayed {
	return contract.GamePlayed{
		Player:      player,
		GameID:      big.NewInt(int64(block)),
		Symbols:     [3]uint8{1, 2, 3},
		BetAmount:   big.NewInt(1e18),
		WinAmount:   big.NewInt(win),
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
	}
}

func TestRecentQueriesWidestWindowAtHead(t *testing.T) {
	src := &fakeSource{head: 1000, maxRange: 100}
	r := NewRetriever(src, 10, zerolog.Nop())

	r.Recent(context.Background(), player)

	if len(src.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(src.queries))
	}
	q := src.queries[0]
	if q[1] != 1000 {
		t.Errorf("window must end at head, got %d", q[1])
	}
	if q[1]-q[0]+1 != 100 {
		t.Errorf("window must span the full range limit, got %d-%d", q[0], q[1])
	}
}

func TestRecentNewestFirstCapped(t *testing.T) {
	src := &fakeSource{head: 1000, maxRange: 100}
	for b := uint64(901); b <= 915; b++ {
		src.events = append(src.events, event(b, 0))
	}
	r := NewRetriever(src, 10, zerolog.Nop())

	got := r.Recent(context.Background(), player)
	if len(got) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(got))
	}
	if got[0].Block != 915 {
		t.Errorf("newest play must be first, got block %d", got[0].Block)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Block < got[i].Block {
			t.Fatalf("ordering violated at %d", i)
		}
	}
}

func TestRecentRetriesWithNarrowerWindow(t *testing.T) {
	src := &fakeSource{
		head:     1000,
		maxRange: 100,
		events:   []contract.GamePlayed{event(995, 5e18)},
		errs:     []error{errors.New("query returned more than 10000 results")},
	}
	r := NewRetriever(src, 10, zerolog.Nop())

	got := r.Recent(context.Background(), player)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry from retry, got %d", len(got))
	}
	if len(src.queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(src.queries))
	}
	retry := src.queries[1]
	if retry[1]-retry[0]+1 != 25 {
		t.Errorf("retry must use a quarter window, got %d-%d", retry[0], retry[1])
	}
}

func TestRecentEmptyOnPersistentFailure(t *testing.T) {
	src := &fakeSource{
		head:     1000,
		maxRange: 100,
		errs:     []error{errors.New("unavailable"), errors.New("unavailable")},
	}
	r := NewRetriever(src, 10, zerolog.Nop())

	if got := r.Recent(context.Background(), player); got != nil {
		t.Errorf("history must degrade to empty, got %d entries", len(got))
	}
}

func TestRecentEmptyWhenHeadUnavailable(t *testing.T) {
	src := &fakeSource{headErr: errors.New("unavailable"), maxRange: 100}
	r := NewRetriever(src, 10, zerolog.Nop())

	if got := r.Recent(context.Background(), player); got != nil {
		t.Errorf("expected empty history, got %d entries", len(got))
	}
	if len(src.queries) != 0 {
		t.Error("no query should run without a head block")
	}
}
