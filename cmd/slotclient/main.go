package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PixelPet-dev/xlayerslot/config"
	"github.com/PixelPet-dev/xlayerslot/contract"
	"github.com/PixelPet-dev/xlayerslot/db/redis"
	"github.com/PixelPet-dev/xlayerslot/game"
	"github.com/PixelPet-dev/xlayerslot/history"
	"github.com/PixelPet-dev/xlayerslot/presentation"
	"github.com/PixelPet-dev/xlayerslot/server"
	"github.com/PixelPet-dev/xlayerslot/wire"
)

var (
	cfgFile string
	envName string
)

func main() {
	root := &cobra.Command{
		Use:   "slotclient",
		Short: "Slot game client for the X Layer lottery contract",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&envName, "env", "", "environment name (development, production)")

	root.AddCommand(
		serveCmd(),
		playCmd(),
		registerCmd(),
		claimCmd(),
		historyCmd(),
		simulateCmd(),
		balanceCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	if envName != "" {
		os.Setenv("ENV", envName)
		return config.LoadByEnv("configs")
	}
	return config.Default(), nil
}

// deps is the hand-wired dependency graph for CLI commands.
type deps struct {
	cfg          *config.Config
	logger       zerolog.Logger
	gateway      *contract.Gateway
	orchestrator *game.Orchestrator
	retriever    *history.Retriever
	cleanup      func()
}

func buildDeps(withSink bool) (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := wire.ProvideLogger(cfg)

	backend, err := wire.ProvideEthClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	signer, err := wire.ProvideSigner(cfg)
	if err != nil {
		return nil, err
	}
	gateway, err := wire.ProvideGateway(cfg, backend, signer, logger)
	if err != nil {
		return nil, err
	}

	provider, err := wire.ProvideRPCProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	client := wire.ProvideChainClient(cfg, provider, logger)
	sessions := wire.ProvideSessionManager(client, logger)

	opts := game.Options{
		Gateway: gateway,
		Session: sessions,
		Ring:    game.NewRing(cfg.Game.HistoryDepth),
		Tuning: game.Tuning{
			ApproveMultiplier: cfg.Game.ApproveMultiplier,
			ReceiptRetries:    cfg.Game.ReceiptRetries,
			ReceiptInterval:   cfg.Game.ReceiptInterval,
			ReplayWindow:      cfg.Game.ReplayWindow,
		},
		Logger: logger,
	}
	if withSink {
		opts.Sink = consoleSink{}
	}

	return &deps{
		cfg:          cfg,
		logger:       logger,
		gateway:      gateway,
		orchestrator: game.NewOrchestrator(opts),
		retriever:    wire.ProvideRetriever(cfg, gateway, logger),
		cleanup: func() {
			provider.Close()
			backend.Close()
		},
	}, nil
}

// consoleSink renders the reveal choreography on stdout.
type consoleSink struct{}

func (consoleSink) SpinStarted(bet *big.Int) {
	fmt.Printf("Spinning... (bet %s)\n", contract.FormatAmount(bet))
}

func (consoleSink) OutcomeReady(o game.Outcome) {
	reveal := presentation.PlanReveal(o)
	for _, stage := range reveal.Stages {
		if stage.Symbol != "" {
			fmt.Printf("  [%s]\n", stage.Symbol)
		}
		time.Sleep(stage.Duration)
	}
	printOutcome(o)
}

func printOutcome(o game.Outcome) {
	switch {
	case o.Degraded():
		fmt.Printf("Bet confirmed but result unresolved (tx %s). It will appear in history once logs catch up.\n", o.TxHash.Hex())
	case o.IsJackpot():
		fmt.Printf("JACKPOT! Won %s (tx %s)\n", contract.FormatAmount(o.WinAmount), o.TxHash.Hex())
	case o.IsWin():
		fmt.Printf("Won %s (tx %s)\n", contract.FormatAmount(o.WinAmount), o.TxHash.Hex())
	default:
		fmt.Printf("No win this time (tx %s)\n", o.TxHash.Hex())
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP game service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := wire.ProvideLogger(cfg)

			backend, err := wire.ProvideEthClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to dial rpc: %w", err)
			}
			signer, err := wire.ProvideSigner(cfg)
			if err != nil {
				return err
			}
			gateway, err := wire.ProvideGateway(cfg, backend, signer, logger)
			if err != nil {
				return err
			}
			provider, err := wire.ProvideRPCProvider(cfg, logger)
			if err != nil {
				return err
			}
			client := wire.ProvideChainClient(cfg, provider, logger)
			sessions := wire.ProvideSessionManager(client, logger)
			feed := wire.ProvideFeed()
			producer := wire.ProvideOutcomeProducer(cfg, logger)

			poller := server.NewBalancePoller(gateway, sessions, cfg.Game.BalancePollInterval, logger)
			orchestrator := wire.ProvideOrchestrator(cfg, gateway, sessions, feed, producer, poller, logger)
			retriever := wire.ProvideRetriever(cfg, gateway, logger)

			cache, err := buildProfileCache(cfg, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("profile cache disabled")
			}

			svc := wire.ProvideGameService(cfg, orchestrator, gateway, sessions, retriever, cache, logger)
			app := wire.ProvideApp(cfg, logger, svc, feed, poller)
			app.UseCommonMiddlewares()
			app.RegisterRoutes()
			app.OnShutdown(func() {
				if producer != nil {
					producer.Close()
				}
				provider.Close()
				backend.Close()
			})

			// Restore an existing wallet session without prompting.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := sessions.CheckExisting(ctx); err != nil {
				logger.Debug().Err(err).Msg("no existing session restored")
			}
			cancel()

			return app.Run()
		},
	}
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <amount>",
		Short: "Place a bet and watch the reveal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(true)
			if err != nil {
				return err
			}
			defer d.cleanup()

			bet, err := contract.ParseAmount(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			_, err = d.orchestrator.Play(ctx, bet)
			return err
		},
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <nickname>",
		Short: "Register the wallet with the game contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			txHash, err := d.orchestrator.Register(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Registered (tx %s)\n", txHash.Hex())
			return nil
		},
	}
}

func claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim pending rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			txHash, err := d.orchestrator.Claim(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Rewards claimed (tx %s)\n", txHash.Hex())
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show recent plays",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			plays := d.retriever.Recent(ctx, d.gateway.Account())
			if len(plays) == 0 {
				fmt.Println("No recent plays found.")
				return nil
			}
			for _, p := range plays {
				fmt.Printf("block %d  %s/%s/%s  bet %s  win %s  %s\n",
					p.Block,
					presentation.SymbolName(p.Symbols[0]),
					presentation.SymbolName(p.Symbols[1]),
					presentation.SymbolName(p.Symbols[2]),
					contract.FormatAmount(p.BetAmount),
					contract.FormatAmount(p.WinAmount),
					p.TxHash.Hex(),
				)
			}
			return nil
		},
	}
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Preview a spin without wagering",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			seed := big.NewInt(time.Now().UnixNano())
			symbols, err := d.gateway.SimulateLottery(ctx, seed)
			if err != nil {
				return err
			}
			fmt.Printf("%s / %s / %s (preview only)\n",
				presentation.SymbolName(symbols[0]),
				presentation.SymbolName(symbols[1]),
				presentation.SymbolName(symbols[2]),
			)
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet's token balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(false)
			if err != nil {
				return err
			}
			defer d.cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			balance, err := d.gateway.BalanceOf(ctx, d.gateway.Account())
			if err != nil {
				return err
			}
			token, err := d.gateway.TokenInfo(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", contract.FormatAmount(balance), token.Symbol)
			return nil
		},
	}
}

func buildProfileCache(cfg *config.Config, logger zerolog.Logger) (*redis.ProfileCache, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client, err := wire.ProvideRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return wire.ProvideProfileCache(cfg, client, logger), nil
}
