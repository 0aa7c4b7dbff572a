// Package config holds the daemon configuration: storage location, API
// binding, validation worker cadence and the circuit verifying key
// artifacts.
package config

import (
	"fmt"
	"time"

	"github.com/zkpay/shieldpool/types"
)

// DefaultBatchInterval is the longest a pending transaction waits before a
// batch is formed, full or not.
const DefaultBatchInterval = 5 * time.Second

// Config is the full daemon configuration.
type Config struct {
	// DataDir is the directory holding the ledger database.
	DataDir string
	// Host and Port bind the API HTTP server.
	Host string
	Port int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// BatchSize caps the transactions pulled into one validation batch.
	// Zero means the service default.
	BatchSize int
	// BatchInterval is the validation worker tick.
	BatchInterval time.Duration
	// RootWindow is the number of recent accumulator roots accepted as a
	// transaction's proof reference.
	RootWindow int
	// DevVerifier accepts structural development proofs instead of
	// groth16. Never enable it outside of tests.
	DevVerifier bool
	// MintVK, TransferVK and ReclaimVK are paths to the per-circuit
	// verifying key files. Required unless DevVerifier is set.
	MintVK     string
	TransferVK string
	ReclaimVK  string
}

// DefaultConfig returns the configuration the daemon starts from before
// flags are applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./shieldpool-data",
		Host:          "0.0.0.0",
		Port:          8080,
		LogLevel:      "info",
		BatchInterval: DefaultBatchInterval,
		RootWindow:    64,
	}
}

// Validate checks the configuration for inconsistencies a daemon cannot
// start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid API port %d", c.Port)
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("batch interval must be positive")
	}
	if c.RootWindow <= 0 {
		return fmt.Errorf("root window must be positive")
	}
	if !c.DevVerifier {
		for kind, path := range c.VerifyingKeyPaths() {
			if path == "" {
				return fmt.Errorf("missing verifying key for %s circuit", kind)
			}
		}
	}
	return nil
}

// VerifyingKeyPaths maps each transaction kind to its verifying key file.
func (c *Config) VerifyingKeyPaths() map[types.TxKind]string {
	return map[types.TxKind]string{
		types.TxKindMint:            c.MintVK,
		types.TxKindPrivateTransfer: c.TransferVK,
		types.TxKindReclaim:         c.ReclaimVK,
	}
}
