package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caiorlm/logichain/app/services/node/handlers"
	"github.com/caiorlm/logichain/business/core/chain"
	"github.com/caiorlm/logichain/foundation/logger"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/genesis"
	"github.com/caiorlm/logichain/internal/validate"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Chain struct {
			DataDir      string `conf:"default:zblock"`
			GenesisPath  string `conf:"default:zblock/genesis.json"`
			Mode         string `conf:"default:ON_GRID"`
			MinerMnemonic string `conf:"default:"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  _                _  ____ _           _       `)
	fmt.Println(` | |    ___   __ _(_)/ ___| |__   __ _(_)_ __  `)
	fmt.Println(` | |   / _ \ / _\ | | |   | '_ \ / _\ | | '_ \ `)
	fmt.Println(` | |__| (_) | (_| | | |___| | | | (_| | | | | |`)
	fmt.Println(` |_____\___/ \__, |_|\____|_| |_|\__,_|_|_| |_|`)
	fmt.Println(`             |___/                              `)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Identity

	// The node's miner address receives the block reward and contract
	// payout shares it validates. A fresh identity is minted on first run
	// when no mnemonic is configured, and the mnemonic is logged once so
	// the operator can persist it — there is no on-disk keystore, matching
	// this chain's design of driving everything off the wallet's own
	// BIP-39 mnemonic instead of a loose key file.
	mnemonic := cfg.Chain.MinerMnemonic
	if mnemonic == "" {
		mnemonic, err = crypto.NewMnemonic()
		if err != nil {
			return fmt.Errorf("generating miner mnemonic: %w", err)
		}
		log.Infow("startup", "status", "generated fresh miner mnemonic, persist this for future runs", "mnemonic", mnemonic)
	}

	minerIdentity, err := crypto.DeriveIdentity(mnemonic, "", crypto.SchemeECDSA)
	if err != nil {
		return fmt.Errorf("deriving miner identity: %w", err)
	}
	log.Infow("startup", "status", "miner identity ready", "address", minerIdentity.Address())

	// =========================================================================
	// Genesis & Chain Actor

	gen, err := genesis.Load(cfg.Chain.GenesisPath)
	if err != nil {
		log.Infow("startup", "status", "no genesis file found, writing defaults", "path", cfg.Chain.GenesisPath)
		gen = genesis.Default()
		if cfg.Chain.Mode == string(genesis.ModeOffGrid) {
			gen = genesis.DefaultOffGrid()
		}
		if err := genesis.Save(cfg.Chain.GenesisPath, gen); err != nil {
			return fmt.Errorf("writing default genesis: %w", err)
		}
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	bc, err := chain.New(chain.Config{
		DataDir:      cfg.Chain.DataDir,
		Genesis:      gen,
		MinerAddress: minerIdentity.Address(),
		EvHandler:    ev,
	})
	if err != nil {
		return fmt.Errorf("starting chain actor: %w", err)
	}
	defer bc.Shutdown()

	bc.StartWorker()
	defer bc.StopWorker()

	val, err := validate.New()
	if err != nil {
		return fmt.Errorf("constructing validator: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Chain:    bc,
		Validate: val,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
