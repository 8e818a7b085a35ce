package wire

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/chain"
	"github.com/PixelPet-dev/xlayerslot/config"
	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/db/redis"
	"github.com/PixelPet-dev/xlayerslot/events/kafka"
	"github.com/PixelPet-dev/xlayerslot/game"
	"github.com/PixelPet-dev/xlayerslot/history"
	"github.com/PixelPet-dev/xlayerslot/logging"
	"github.com/PixelPet-dev/xlayerslot/presentation"
	"github.com/PixelPet-dev/xlayerslot/server"
	"github.com/PixelPet-dev/xlayerslot/session"
)

// ProvideLogger builds the root logger.
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideRPCProvider dials the wallet/RPC boundary.
func ProvideRPCProvider(cfg *config.Config, logger zerolog.Logger) (*chain.RPCProvider, error) {
	return chain.DialRPC(cfg.Network.PrimaryRPCURL(), cfg.Network.PollInterval, logger)
}

// ProvideChainClient builds the network-enforcing client.
func ProvideChainClient(cfg *config.Config, provider *chain.RPCProvider, logger zerolog.Logger) *chain.Client {
	desc := chain.DescriptorFor(
		cfg.Network.ChainID,
		cfg.Network.ChainName,
		cfg.Network.CurrencyName,
		cfg.Network.CurrencySymbol,
		cfg.Network.CurrencyDecimals,
		cfg.Network.RPCURLs,
		cfg.Network.BlockExplorerURLs,
	)
	return chain.NewClient(provider, cfg.Network.ChainID, desc, logger)
}

// ProvideSigner builds the transaction signer from the configured key.
func ProvideSigner(cfg *config.Config) (*chain.KeySigner, error) {
	if cfg.Wallet.PrivateKey == "" {
		return nil, fmt.Errorf("wallet private key is not configured")
	}
	return chain.NewKeySigner(cfg.Wallet.PrivateKey)
}

// ProvideEthClient dials the execution backend.
func ProvideEthClient(cfg *config.Config) (*ethclient.Client, error) {
	return ethclient.Dial(cfg.Network.PrimaryRPCURL())
}

// ProvideGateway builds the contract gateway.
func ProvideGateway(cfg *config.Config, backend *ethclient.Client, signer *chain.KeySigner, logger zerolog.Logger) (*contract.Gateway, error) {
	return contract.NewGateway(backend, signer, contract.Options{
		GameAddress:   common.HexToAddress(cfg.Contracts.GameAddress),
		TokenAddress:  common.HexToAddress(cfg.Contracts.TokenAddress),
		ChainID:       cfg.Network.ChainID,
		MaxBlockRange: cfg.Game.LogRangeLimit,
		Logger:        logger,
	})
}

// ProvideSessionManager builds the wallet session manager.
func ProvideSessionManager(client *chain.Client, logger zerolog.Logger) *session.Manager {
	return session.NewManager(client, logger)
}

// ProvideFeed builds the presentation event feed.
func ProvideFeed() *presentation.Feed {
	return presentation.NewFeed(64)
}

// ProvideOutcomeProducer builds the optional Kafka outcome stream. Nil
// when brokers are not configured.
func ProvideOutcomeProducer(cfg *config.Config, logger zerolog.Logger) *kafka.OutcomeProducer {
	return kafka.NewOutcomeProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.OutcomeTopic,
		Logger:  logger,
	})
}

// ProvideOrchestrator builds the bet pipeline.
func ProvideOrchestrator(
	cfg *config.Config,
	gateway *contract.Gateway,
	sessions *session.Manager,
	feed *presentation.Feed,
	producer *kafka.OutcomeProducer,
	poller *server.BalancePoller,
	logger zerolog.Logger,
) *game.Orchestrator {
	opts := game.Options{
		Gateway: gateway,
		Session: sessions,
		Ring:    game.NewRing(cfg.Game.HistoryDepth),
		Sink:    feed,
		Tuning: game.Tuning{
			ApproveMultiplier: cfg.Game.ApproveMultiplier,
			ReceiptRetries:    cfg.Game.ReceiptRetries,
			ReceiptInterval:   cfg.Game.ReceiptInterval,
			ReplayWindow:      cfg.Game.ReplayWindow,
		},
		Logger: logger,
	}
	if producer != nil {
		opts.Publisher = producer
	}
	if poller != nil {
		opts.OnSettled = poller.Poke
	}
	return game.NewOrchestrator(opts)
}

// ProvideRetriever builds the history retriever.
func ProvideRetriever(cfg *config.Config, gateway *contract.Gateway, logger zerolog.Logger) *history.Retriever {
	return history.NewRetriever(gateway, cfg.Game.HistoryDepth, logger)
}

// ProvideRedisClient connects the profile cache store.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return redis.New(cfg.Redis)
}

// ProvideProfileCache builds the profile cache. Nil client disables it.
func ProvideProfileCache(cfg *config.Config, client *redis.Client, logger zerolog.Logger) *redis.ProfileCache {
	if client == nil {
		return nil
	}
	return redis.NewProfileCache(client, cfg.Redis.TTL, logger)
}

// ProvideGameService builds the application service.
func ProvideGameService(
	cfg *config.Config,
	orchestrator *game.Orchestrator,
	gateway *contract.Gateway,
	sessions *session.Manager,
	retriever *history.Retriever,
	profiles *redis.ProfileCache,
	logger zerolog.Logger,
) *server.GameService {
	return server.NewGameService(server.ServiceOptions{
		Orchestrator: orchestrator,
		Reader:       gateway,
		Sessions:     sessions,
		Retriever:    retriever,
		Profiles:     profiles,
		Network:      cfg.Network,
		Logger:       logger,
	})
}

// ProvideApp builds the HTTP application.
func ProvideApp(cfg *config.Config, logger zerolog.Logger, svc *server.GameService, feed *presentation.Feed, poller *server.BalancePoller) *server.App {
	return server.New(server.Options{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Feed:    feed,
		Poller:  poller,
	})
}

// ChainSet groups the chain-facing providers.
var ChainSet = wire.NewSet(
	ProvideRPCProvider,
	ProvideChainClient,
	ProvideSigner,
	ProvideEthClient,
	ProvideGateway,
)

// GameSet groups the pipeline providers.
var GameSet = wire.NewSet(
	ProvideSessionManager,
	ProvideFeed,
	ProvideOrchestrator,
	ProvideRetriever,
)

// DefaultSet is the full provider set for the service.
var DefaultSet = wire.NewSet(
	ProvideLogger,
	ChainSet,
	GameSet,
	ProvideOutcomeProducer,
	ProvideRedisClient,
	ProvideProfileCache,
	ProvideGameService,
	ProvideApp,
)
