// Package chain wraps the wallet-injected provider boundary: account
// resolution, chain id, gas price, and the network switch/add requests.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownChain is returned by SwitchChain when the wallet does not know
// the requested network (EIP-3326 error 4902); callers should AddChain.
var ErrUnknownChain = errors.New("chain: network unknown to wallet")

// ErrRejected is returned when the wallet user declines a request.
var ErrRejected = errors.New("chain: request rejected by user")

// NativeCurrency describes the chain's native token for wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkDescriptor is the EIP-3085 network descriptor required by
// wallet_addEthereumChain.
type NetworkDescriptor struct {
	ChainID           string         `json:"chainId"` // hex, e.g. "0xC4"
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// Provider is the minimal wallet provider surface the client consumes.
// It mirrors the injected-provider API: interactive account requests,
// non-interactive account reads, chain/gas queries, network switch/add,
// and change notifications. The provider is a shared external resource:
// implementations must tolerate concurrent external mutation and never
// assume exclusive ownership.
type Provider interface {
	// RequestAccounts prompts for account access (eth_requestAccounts).
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts reads already-authorized accounts without prompting (eth_accounts).
	Accounts(ctx context.Context) ([]common.Address, error)

	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// SwitchChain asks the wallet to switch networks; returns ErrUnknownChain
	// if the network must be added first.
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// AddChain registers a network with the wallet.
	AddChain(ctx context.Context, desc NetworkDescriptor) error

	// OnAccountsChanged registers a listener; the returned func unsubscribes it.
	OnAccountsChanged(fn func(accounts []common.Address)) (unsubscribe func())

	// OnChainChanged registers a listener; the returned func unsubscribes it.
	OnChainChanged(fn func(chainID *big.Int)) (unsubscribe func())

	Close()
}
