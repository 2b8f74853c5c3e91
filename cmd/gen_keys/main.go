// Command gen_keys generates a fresh local account (instance tag plus
// long-term and forging Ed448 keypairs) and either prints it or
// persists it to a private-key file, mirroring the teacher's
// cmd/gen_keys/main.go which does the same for a single Ed25519 key.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"otrng/account"
)

func main() {
	acc, err := account.New()
	if err != nil {
		log.Fatalf("failed to generate account: %v", err)
	}

	fmt.Printf("INSTANCE_TAG: %08x\n", uint32(acc.InstanceTag))
	fmt.Printf("LONG_TERM_PUBLIC: %s\n", hex.EncodeToString(acc.LongTerm.Public[:]))
	fmt.Printf("FORGING_PUBLIC: %s\n", hex.EncodeToString(acc.Forging.Public[:]))

	if len(os.Args) < 2 {
		fmt.Println("\nusage: gen_keys <path>  to also persist the account to a key file")
		return
	}

	path := os.Args[1]
	if err := account.NewFileStore(path).Save(acc); err != nil {
		log.Fatalf("failed to save account to %s: %v", path, err)
	}
	fmt.Printf("saved to %s\n", path)
}
