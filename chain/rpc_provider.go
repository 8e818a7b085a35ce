package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const defaultPollInterval = 2 * time.Second

// RPCProvider implements Provider over a JSON-RPC endpoint (a wallet bridge
// or a node). Change notifications are emulated by polling eth_accounts and
// eth_chainId, since plain HTTP transports carry no push events.
type RPCProvider struct {
	client *rpc.Client
	logger zerolog.Logger

	mu              sync.Mutex
	nextID          int
	accountHandlers map[int]func([]common.Address)
	chainHandlers   map[int]func(*big.Int)

	lastAccounts []common.Address
	lastChainID  *big.Int

	pollInterval time.Duration
	stopPoll     chan struct{}
	pollOnce     sync.Once
	closeOnce    sync.Once
}

// DialRPC connects an RPCProvider to the given endpoint.
func DialRPC(url string, pollInterval time.Duration, logger zerolog.Logger) (*RPCProvider, error) {
	client, err := rpc.Dial(url)
	if err != nil {
		return nil, err
	}
	return NewRPCProvider(client, pollInterval, logger), nil
}

// NewRPCProvider wraps an existing rpc.Client.
func NewRPCProvider(client *rpc.Client, pollInterval time.Duration, logger zerolog.Logger) *RPCProvider {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &RPCProvider{
		client:          client,
		logger:          logger.With().Str("component", "rpc_provider").Logger(),
		accountHandlers: make(map[int]func([]common.Address)),
		chainHandlers:   make(map[int]func(*big.Int)),
		pollInterval:    pollInterval,
		stopPoll:        make(chan struct{}),
	}
}

// RequestAccounts prompts the wallet for account access.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := p.client.CallContext(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, mapWalletError(err)
	}
	accounts := lo.Map(raw, func(s string, _ int) common.Address {
		return common.HexToAddress(s)
	})
	p.remember(accounts, nil)
	return accounts, nil
}

// Accounts reads already-authorized accounts without prompting.
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := p.client.CallContext(ctx, &raw, "eth_accounts"); err != nil {
		return nil, mapWalletError(err)
	}
	accounts := lo.Map(raw, func(s string, _ int) common.Address {
		return common.HexToAddress(s)
	})
	p.remember(accounts, nil)
	return accounts, nil
}

// ChainID returns the active chain id.
func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	var raw string
	if err := p.client.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return nil, mapWalletError(err)
	}
	id, err := hexutil.DecodeBig(raw)
	if err != nil {
		return nil, err
	}
	p.remember(nil, id)
	return id, nil
}

// SuggestGasPrice returns the current gas price.
func (p *RPCProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var raw string
	if err := p.client.CallContext(ctx, &raw, "eth_gasPrice"); err != nil {
		return nil, mapWalletError(err)
	}
	return hexutil.DecodeBig(raw)
}

// SwitchChain issues wallet_switchEthereumChain.
func (p *RPCProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	params := map[string]string{"chainId": hexutil.EncodeBig(chainID)}
	if err := p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", params); err != nil {
		return mapWalletError(err)
	}
	return nil
}

// AddChain issues wallet_addEthereumChain with the full network descriptor.
func (p *RPCProvider) AddChain(ctx context.Context, desc NetworkDescriptor) error {
	if err := p.client.CallContext(ctx, nil, "wallet_addEthereumChain", desc); err != nil {
		return mapWalletError(err)
	}
	return nil
}

// OnAccountsChanged registers a listener fired when the authorized account
// set changes. The returned func removes exactly this listener.
func (p *RPCProvider) OnAccountsChanged(fn func([]common.Address)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.accountHandlers[id] = fn
	p.mu.Unlock()
	p.ensurePolling()
	return func() {
		p.mu.Lock()
		delete(p.accountHandlers, id)
		p.mu.Unlock()
	}
}

// OnChainChanged registers a listener fired when the chain id changes.
func (p *RPCProvider) OnChainChanged(fn func(*big.Int)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.chainHandlers[id] = fn
	p.mu.Unlock()
	p.ensurePolling()
	return func() {
		p.mu.Lock()
		delete(p.chainHandlers, id)
		p.mu.Unlock()
	}
}

// Close stops the poller and releases the underlying client.
func (p *RPCProvider) Close() {
	p.closeOnce.Do(func() {
		close(p.stopPoll)
		p.client.Close()
	})
}

func (p *RPCProvider) ensurePolling() {
	p.pollOnce.Do(func() {
		go p.pollLoop()
	})
}

func (p *RPCProvider) pollLoop() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopPoll:
			return
		case <-ticker.C:
			p.pollOnceNow()
		}
	}
}

func (p *RPCProvider) pollOnceNow() {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval)
	defer cancel()

	var rawAccounts []string
	accErr := p.client.CallContext(ctx, &rawAccounts, "eth_accounts")

	var rawChain string
	chainErr := p.client.CallContext(ctx, &rawChain, "eth_chainId")

	p.mu.Lock()
	var accountFns []func([]common.Address)
	var chainFns []func(*big.Int)
	var accounts []common.Address
	var chainID *big.Int

	if accErr == nil {
		accounts = lo.Map(rawAccounts, func(s string, _ int) common.Address {
			return common.HexToAddress(s)
		})
		if !sameAccounts(p.lastAccounts, accounts) {
			p.lastAccounts = accounts
			accountFns = lo.Values(p.accountHandlers)
		}
	}
	if chainErr == nil {
		if id, err := hexutil.DecodeBig(rawChain); err == nil {
			if p.lastChainID == nil || p.lastChainID.Cmp(id) != 0 {
				prev := p.lastChainID
				p.lastChainID = id
				if prev != nil {
					chainID = id
					chainFns = lo.Values(p.chainHandlers)
				}
			}
		}
	}
	p.mu.Unlock()

	for _, fn := range accountFns {
		fn(accounts)
	}
	for _, fn := range chainFns {
		fn(chainID)
	}
}

func (p *RPCProvider) remember(accounts []common.Address, chainID *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if accounts != nil {
		p.lastAccounts = accounts
	}
	if chainID != nil {
		p.lastChainID = chainID
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mapWalletError normalizes the well-known wallet error codes onto the
// package sentinels so callers can branch on behavior, not provider text.
func mapWalletError(err error) error {
	if err == nil {
		return nil
	}
	var code int
	if rpcErr, ok := err.(rpc.Error); ok {
		code = rpcErr.ErrorCode()
	}
	switch code {
	case 4001:
		return ErrRejected
	case 4902:
		return ErrUnknownChain
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied") {
		return ErrRejected
	}
	if strings.Contains(msg, "unrecognized chain") || strings.Contains(msg, "4902") {
		return ErrUnknownChain
	}
	return err
}
