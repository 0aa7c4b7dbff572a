package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/zkpay/shieldpool/config"
	"github.com/zkpay/shieldpool/ledger"
	"github.com/zkpay/shieldpool/log"
	"github.com/zkpay/shieldpool/service"
	"github.com/zkpay/shieldpool/zkverify"
)

func main() {
	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.DataDir, "dataDir", cfg.DataDir, "directory for the ledger database")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "API host to listen on")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "API port to listen on")
	flag.StringVar(&cfg.LogLevel, "logLevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.IntVar(&cfg.BatchSize, "batchSize", service.DefaultBatchSize, "max transactions per validation batch")
	flag.DurationVar(&cfg.BatchInterval, "batchInterval", cfg.BatchInterval, "max wait before a pending batch is validated")
	flag.IntVar(&cfg.RootWindow, "rootWindow", cfg.RootWindow, "number of recent roots accepted as proof references")
	flag.BoolVar(&cfg.DevVerifier, "dev", false, "accept structural dev proofs instead of groth16 (testing only)")
	flag.StringVar(&cfg.MintVK, "mintVK", "", "path to the mint circuit verifying key")
	flag.StringVar(&cfg.TransferVK, "transferVK", "", "path to the transfer circuit verifying key")
	flag.StringVar(&cfg.ReclaimVK, "reclaimVK", "", "path to the reclaim circuit verifying key")
	flag.Parse()
	log.Init(cfg.LogLevel, "stdout", nil)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	database, err := metadb.New(db.TypePebble, cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	verifier, err := buildVerifier(cfg)
	if err != nil {
		log.Fatalf("failed to build proof verifier: %v", err)
	}

	params := ledger.DefaultParams()
	params.RootWindow = cfg.RootWindow
	l, err := ledger.New(database, params, verifier)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledgerSrv, err := service.NewLedger(l, cfg.BatchSize, cfg.BatchInterval)
	if err != nil {
		log.Fatalf("failed to create ledger service: %v", err)
	}
	if err := ledgerSrv.Start(ctx); err != nil {
		log.Fatalf("failed to start ledger service: %v", err)
	}
	apiSrv := service.NewAPI(l, cfg.Host, cfg.Port)
	if err := apiSrv.Start(ctx); err != nil {
		log.Fatalf("failed to start API service: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("shutting down", "signal", sig.String())

	ledgerSrv.Stop()
	apiSrv.Stop()
}

// buildVerifier selects the proof verifier: structural dev proofs, or
// groth16 with one verifying key file per circuit.
func buildVerifier(cfg *config.Config) (zkverify.Verifier, error) {
	if cfg.DevVerifier {
		log.Warnw("dev verifier enabled: proofs are NOT cryptographically checked")
		return zkverify.DevVerifier{}, nil
	}
	g16, err := zkverify.NewGroth16Verifier()
	if err != nil {
		return nil, err
	}
	for kind, path := range cfg.VerifyingKeyPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read verifying key %s: %w", path, err)
		}
		if err := g16.RegisterKeyBytes(kind, data); err != nil {
			return nil, err
		}
	}
	return g16, nil
}
