package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/daap14/iaap/internal/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var cost int
	flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	flagSet.IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: keygen [--cost N]\n\nPrints a new admin API key and the ADMIN_API_KEY_HASH value for it.\n\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	rawKey, hash, err := auth.GenerateKey(cost)
	if err != nil {
		return err
	}

	fmt.Printf("API key (send as X-API-Key, shown once): %s\n", rawKey)
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
	return nil
}
