package redis

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/contract"
)

// ProfileCache fronts the on-chain user profile read. Profiles change
// only on the player's own transactions, so a short TTL is safe and
// spares an RPC round trip per page load. The cache is best effort: any
// Redis failure falls through to the chain.
type ProfileCache struct {
	client *Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewProfileCache(client *Client, ttl time.Duration, logger zerolog.Logger) *ProfileCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ProfileCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "profile_cache").Logger(),
	}
}

func profileKey(addr common.Address) string {
	return "profile:" + addr.Hex()
}

// Get returns the cached profile, or nil on a miss.
func (p *ProfileCache) Get(ctx context.Context, addr common.Address) *contract.UserProfile {
	var profile contract.UserProfile
	err := p.client.GetJSON(ctx, profileKey(addr), &profile)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		p.logger.Debug().Err(err).Str("player", addr.Hex()).Msg("profile cache read failed")
		return nil
	}
	return &profile
}

// Put stores a freshly read profile.
func (p *ProfileCache) Put(ctx context.Context, addr common.Address, profile *contract.UserProfile) {
	if err := p.client.SetJSON(ctx, profileKey(addr), profile, p.ttl); err != nil {
		p.logger.Debug().Err(err).Str("player", addr.Hex()).Msg("profile cache write failed")
	}
}

// Invalidate drops the cached profile after a state-changing transaction
// (registration, bet, claim).
func (p *ProfileCache) Invalidate(ctx context.Context, addr common.Address) {
	if err := p.client.Delete(ctx, profileKey(addr)); err != nil {
		p.logger.Debug().Err(err).Str("player", addr.Hex()).Msg("profile cache invalidation failed")
	}
}
