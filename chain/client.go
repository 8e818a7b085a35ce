package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	apperrors "github.com/PixelPet-dev/xlayerslot/errors"
)

// Client resolves the active account and enforces the required network.
// It is a thin layer over the wallet Provider; contract traffic goes
// through the contract gateway, not through here.
type Client struct {
	provider   Provider
	required   *big.Int
	descriptor NetworkDescriptor
	logger     zerolog.Logger
}

// NewClient builds a chain client bound to a required chain id.
func NewClient(provider Provider, requiredChainID uint64, desc NetworkDescriptor, logger zerolog.Logger) *Client {
	return &Client{
		provider:   provider,
		required:   new(big.Int).SetUint64(requiredChainID),
		descriptor: desc,
		logger:     logger.With().Str("component", "chain_client").Logger(),
	}
}

// DescriptorFor builds the wallet_addEthereumChain descriptor from
// plain network parameters.
func DescriptorFor(chainID uint64, name, currencyName, currencySymbol string, decimals int, rpcURLs, explorerURLs []string) NetworkDescriptor {
	return NetworkDescriptor{
		ChainID:   hexutil.EncodeUint64(chainID),
		ChainName: name,
		NativeCurrency: NativeCurrency{
			Name:     currencyName,
			Symbol:   currencySymbol,
			Decimals: decimals,
		},
		RPCURLs:           rpcURLs,
		BlockExplorerURLs: explorerURLs,
	}
}

// Provider exposes the underlying wallet provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// RequiredChainID returns the chain this deployment is bound to.
func (c *Client) RequiredChainID() *big.Int {
	return new(big.Int).Set(c.required)
}

// ResolveAccount interactively requests account access and returns the
// primary account.
func (c *Client) ResolveAccount(ctx context.Context) (common.Address, error) {
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return common.Address{}, apperrors.Wrap(err, apperrors.ErrUserRejected, "wallet connection rejected by user")
		}
		return common.Address{}, apperrors.Wrap(err, apperrors.ErrNoWalletFound, "failed to request wallet accounts")
	}
	if len(accounts) == 0 {
		return common.Address{}, apperrors.New(apperrors.ErrNoWalletFound, "no wallet accounts found")
	}
	return accounts[0], nil
}

// ActiveAccount reads the already-authorized account without prompting.
// A zero address with nil error means no account is authorized.
func (c *Client) ActiveAccount(ctx context.Context) (common.Address, error) {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return common.Address{}, apperrors.Wrap(err, apperrors.ErrRpcUnavailable, "failed to read wallet accounts")
	}
	if len(accounts) == 0 {
		return common.Address{}, nil
	}
	return accounts[0], nil
}

// OnRequiredNetwork reports whether the wallet is on the deployment chain.
func (c *Client) OnRequiredNetwork(ctx context.Context) (bool, *big.Int, error) {
	id, err := c.provider.ChainID(ctx)
	if err != nil {
		return false, nil, apperrors.Wrap(err, apperrors.ErrRpcUnavailable, "failed to read chain id")
	}
	return id.Cmp(c.required) == 0, id, nil
}

// EnsureNetwork switches the wallet to the required chain, adding the
// network first when the wallet does not know it.
func (c *Client) EnsureNetwork(ctx context.Context) error {
	ok, current, err := c.OnRequiredNetwork(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	c.logger.Info().
		Str("current", current.String()).
		Str("required", c.required.String()).
		Msg("wrong network, requesting switch")

	switchErr := c.provider.SwitchChain(ctx, c.required)
	if switchErr == nil {
		return c.verifySwitched(ctx)
	}
	if errors.Is(switchErr, ErrRejected) {
		return apperrors.Wrap(switchErr, apperrors.ErrUserRejected, "network switch rejected by user")
	}
	if !errors.Is(switchErr, ErrUnknownChain) {
		return apperrors.Wrap(switchErr, apperrors.ErrNetworkSwitch, "network switch failed")
	}

	// The wallet does not know the chain: register it, then switch again.
	if err := c.provider.AddChain(ctx, c.descriptor); err != nil {
		if errors.Is(err, ErrRejected) {
			return apperrors.Wrap(err, apperrors.ErrUserRejected, "network add rejected by user")
		}
		return apperrors.Wrap(err, apperrors.ErrNetworkSwitch, fmt.Sprintf("failed to add network %s", c.descriptor.ChainName))
	}
	if err := c.provider.SwitchChain(ctx, c.required); err != nil && !errors.Is(err, ErrRejected) {
		// Some wallets switch automatically after an add; re-check below.
		c.logger.Debug().Err(err).Msg("post-add switch request failed")
	}
	return c.verifySwitched(ctx)
}

func (c *Client) verifySwitched(ctx context.Context) error {
	ok, current, err := c.OnRequiredNetwork(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrNetworkMismatch,
			"wallet is on chain %s, required %s", current.String(), c.required.String())
	}
	return nil
}

// GasPrice returns the wallet-suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.provider.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRpcUnavailable, "failed to fetch gas price")
	}
	return price, nil
}
