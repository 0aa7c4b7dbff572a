package config

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/zkpay/shieldpool/types"
)

func TestDefaultConfigValidatesWithDevVerifier(t *testing.T) {
	c := qt.New(t)

	cfg := DefaultConfig()
	cfg.DevVerifier = true
	c.Assert(cfg.Validate(), qt.IsNil)
}

func TestValidateRejectsBadValues(t *testing.T) {
	c := qt.New(t)

	base := func() *Config {
		cfg := DefaultConfig()
		cfg.DevVerifier = true
		return cfg
	}

	cfg := base()
	cfg.DataDir = ""
	c.Assert(cfg.Validate(), qt.IsNotNil)

	cfg = base()
	cfg.Port = 0
	c.Assert(cfg.Validate(), qt.IsNotNil)

	cfg = base()
	cfg.Port = 70000
	c.Assert(cfg.Validate(), qt.IsNotNil)

	cfg = base()
	cfg.BatchInterval = 0
	c.Assert(cfg.Validate(), qt.IsNotNil)

	cfg = base()
	cfg.RootWindow = -1
	c.Assert(cfg.Validate(), qt.IsNotNil)
}

func TestValidateRequiresVerifyingKeys(t *testing.T) {
	c := qt.New(t)

	cfg := DefaultConfig()
	cfg.MintVK = "mint.vk"
	cfg.TransferVK = "transfer.vk"
	// reclaim key missing
	c.Assert(cfg.Validate(), qt.IsNotNil)

	cfg.ReclaimVK = "reclaim.vk"
	c.Assert(cfg.Validate(), qt.IsNil)

	paths := cfg.VerifyingKeyPaths()
	c.Assert(paths[types.TxKindMint], qt.Equals, "mint.vk")
	c.Assert(paths[types.TxKindPrivateTransfer], qt.Equals, "transfer.vk")
	c.Assert(paths[types.TxKindReclaim], qt.Equals, "reclaim.vk")
}
