package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"landledger/crypto"
	"landledger/rpc"
)

// generateKey creates a fresh admin keypair and writes it to an encrypted
// keystore. The passphrase comes from LAND_ADMIN_PASS; an unset variable
// produces a dev keystore with an empty passphrase.
func generateKey(args []string) {
	requireArgs(args, 1, "generate-key <path>")
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists, refusing to overwrite\n", path)
		os.Exit(1)
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: generate key: %v\n", err)
		os.Exit(1)
	}
	if err := crypto.SaveToKeystore(path, key, os.Getenv("LAND_ADMIN_PASS")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: save keystore: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Keystore written to %s\nAddress: %s\n", path, key.PubKey().Address().String())
}

// issueToken mints an operator JWT for the admin-gated RPC methods. The
// signing secret is read from LAND_RPC_SECRET and must match the daemon's
// RPC.JWTSecret.
func issueToken(args []string) {
	requireArgs(args, 1, "token <subject> [ttl]")
	secret := strings.TrimSpace(os.Getenv("LAND_RPC_SECRET"))
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: LAND_RPC_SECRET is not set")
		os.Exit(1)
	}
	ttl := time.Hour
	if len(args) > 1 {
		parsed, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl %q: %v\n", args[1], err)
			os.Exit(1)
		}
		ttl = parsed
	}
	token, err := rpc.IssueToken([]byte(secret), args[0], ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
