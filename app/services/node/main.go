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

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/app/services/node/handlers"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/blockchain/storage/badgerdb"
	"github.com/siertrichain/siertrichain/foundation/blockchain/storage/disk"
	"github.com/siertrichain/siertrichain/foundation/blockchain/storage/memory"
	"github.com/siertrichain/siertrichain/foundation/blockchain/worker"
	"github.com/siertrichain/siertrichain/foundation/events"
	"github.com/siertrichain/siertrichain/foundation/logger"
	"github.com/siertrichain/siertrichain/foundation/nameservice"
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
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			CorsOrigins     []string      `conf:"default:*"`
		}
		State struct {
			MinerName      string   `conf:"default:miner1"`
			Storage        string   `conf:"default:disk"`
			DBPath         string   `conf:"default:zblock/blocks.db"`
			GenesisPath    string   `conf:"default:zblock/genesis.json"`
			SelectStrategy string   `conf:"default:fee"`
			KnownPeers     []string `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "siertrichain triangle ledger node",
		},
	}

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

	fmt.Println(`  ____ ___ _____ ____ _____ ____  ___ ____ _   _    _    ___ _   _ `)
	fmt.Println(` / ___|_ _| ____|  _ \_   _|  _ \|_ _/ ___| | | |  / \  |_ _| \ | |`)
	fmt.Println(` \___ \| ||  _| | |_) || | | |_) || | |   | |_| | / _ \  | ||  \| |`)
	fmt.Println(`  ___) | || |___|  _ < | | |  _ < | | |___|  _  |/ ___ \ | || |\  |`)
	fmt.Println(` |____/___|_____|_| \_\|_| |_| \_\___\____|_| |_/_/   \_\___|_| \_|`)
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
	// Name Service Support

	// Account names are the key file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Blockchain Support

	// Block rewards are credited to the account of the miner's key.
	path := fmt.Sprintf("%s%s.ecdsa", cfg.NameService.Folder, cfg.State.MinerName)
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	beneficiaryID := database.AccountID(signature.NewPrivateKey(privateKey).Address())

	// Every node of the network must run with the same protocol parameters.
	// Without a genesis file the defaults are used.
	gen, err := loadGenesis(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// The storage backend keeps the chain and the ledger between restarts.
	strg, err := openStorage(cfg.State.Storage, cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	peerSet := peer.NewPeerSet(cfg.State.KnownPeers...)

	// Chain events are logged and fanned out to websocket subscribers.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st, err := state.New(state.Config{
		BeneficiaryID:  beneficiaryID,
		Host:           cfg.Web.PrivateHost,
		Storage:        strg,
		Genesis:        gen,
		SelectStrategy: cfg.State.SelectStrategy,
		KnownPeers:     peerSet,
		EvHandler:      ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer st.Shutdown()

	log.Infow("startup", "status", "chain loaded", "height", st.QueryHeight(), "beneficiary", beneficiaryID, "storage", cfg.State.Storage)

	// The worker registers itself with the state and owns mining, peer
	// sharing and peer discovery.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	debugMux, err := handlers.DebugMux(build, log, st)
	if err != nil {
		return fmt.Errorf("constructing debug mux: %w", err)
	}

	// The debug listener is not part of the graceful shutdown.
	go func() {
		log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Services

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
		Origins:  cfg.Web.CorsOrigins,
	}

	// Peers are shut down first so no block arrives while wallets drain.
	servers := []struct {
		name string
		srv  *http.Server
	}{
		{"private", newServer(log, cfg.Web.PrivateHost, handlers.PrivateMux(muxCfg), cfg.Web.ReadTimeout, cfg.Web.WriteTimeout, cfg.Web.IdleTimeout)},
		{"public", newServer(log, cfg.Web.PublicHost, handlers.PublicMux(muxCfg), cfg.Web.ReadTimeout, cfg.Web.WriteTimeout, cfg.Web.IdleTimeout)},
	}

	serverErrors := make(chan error, len(servers))
	for _, s := range servers {
		s := s
		go func() {
			log.Infow("startup", "status", s.name+" api router started", "host", s.srv.Addr)
			if err := s.srv.ListenAndServe(); err != nil {
				serverErrors <- fmt.Errorf("%s: %w", s.name, err)
			}
		}()
	}

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Websocket handlers block until their channel closes.
		evts.Shutdown()

		for _, s := range servers {
			log.Infow("shutdown", "status", "stopping "+s.name+" api")

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
			err := s.srv.Shutdown(ctx)
			cancel()

			if err != nil {
				s.srv.Close()
				return fmt.Errorf("could not stop %s service gracefully: %w", s.name, err)
			}
		}
	}

	return nil
}

// newServer constructs an http server for the handler with the configured
// timeouts. Server errors go through the application logger.
func newServer(log *zap.SugaredLogger, addr string, h http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}
}

// loadGenesis reads the genesis file when it exists and falls back to the
// default parameters otherwise.
func loadGenesis(path string) (genesis.Genesis, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return genesis.Default(), nil
	}

	return genesis.Load(path)
}

// openStorage constructs the configured storage backend.
func openStorage(kind string, dbPath string) (state.Storage, error) {
	switch kind {
	case "disk":
		return disk.New(dbPath)
	case "badger":
		return badgerdb.New(dbPath)
	case "memory":
		return memory.New()
	}

	return nil, fmt.Errorf("unknown storage %q, use disk, badger or memory", kind)
}
