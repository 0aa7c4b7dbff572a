// Command zksetup compiles the transaction circuits, runs the groth16 setup
// and writes the proving and verifying keys to disk. The verifying keys feed
// the shieldpoold daemon; the proving keys go to wallet-side provers.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zkpay/shieldpool/circuits"
	"github.com/zkpay/shieldpool/types"
)

func main() {
	outDir := flag.String("out", ".", "output directory for the key files")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}
	kinds := []types.TxKind{types.TxKindMint, types.TxKindPrivateTransfer, types.TxKindReclaim}
	for _, kind := range kinds {
		if err := setup(kind, *outDir); err != nil {
			fmt.Fprintf(os.Stderr, "setup %s: %v\n", kind, err)
			os.Exit(1)
		}
	}
}

func setup(kind types.TxKind, outDir string) error {
	start := time.Now()
	_, pk, vk, err := circuits.CompileAndSetup(kind)
	if err != nil {
		return err
	}
	fmt.Printf("compile and setup %s: %s\n", kind, time.Since(start))

	pkFile, err := os.Create(filepath.Join(outDir, kind.String()+".pk"))
	if err != nil {
		return err
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("write proving key: %w", err)
	}

	vkBytes, err := circuits.MarshalVerifyingKey(vk)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, kind.String()+".vk"), vkBytes, 0o644)
}
