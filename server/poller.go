package server

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/session"
)

// BalancePoller refreshes the connected player's token balance on an
// interval and caches the last read so the HTTP surface serves it
// without a round trip. It is also poked directly after every settled
// bet so the displayed balance never lags a known state change.
type BalancePoller struct {
	reader   ChainReader
	sessions *session.Manager
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	balance *big.Int
	asOf    time.Time

	poke   chan struct{}
	cancel context.CancelFunc
}

func NewBalancePoller(reader ChainReader, sessions *session.Manager, interval time.Duration, logger zerolog.Logger) *BalancePoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &BalancePoller{
		reader:   reader,
		sessions: sessions,
		interval: interval,
		logger:   logger.With().Str("component", "balance_poller").Logger(),
		poke:     make(chan struct{}, 1),
	}
}

// Start launches the poll loop. Call Stop to shut it down.
func (p *BalancePoller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop halts the poll loop.
func (p *BalancePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Poke requests an immediate refresh, coalescing with any pending one.
func (p *BalancePoller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// Last returns the most recent balance as a formatted amount, with its
// read time. Empty string when no read has succeeded yet.
func (p *BalancePoller) Last() (string, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.balance == nil {
		return "", time.Time{}
	}
	return contract.FormatAmount(p.balance), p.asOf
}

func (p *BalancePoller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.poke:
		}
		p.refresh(ctx)
	}
}

func (p *BalancePoller) refresh(ctx context.Context) {
	if !p.sessions.Snapshot().Connected() {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	balance, err := p.reader.BalanceOf(reqCtx, p.reader.Account())
	if err != nil {
		p.logger.Debug().Err(err).Msg("balance refresh failed")
		return
	}

	p.mu.Lock()
	p.balance = balance
	p.asOf = time.Now()
	p.mu.Unlock()
}
