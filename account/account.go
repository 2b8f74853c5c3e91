// Package account holds the local identity a conversation is conducted
// under: the instance tag and long-term Ed448 keypair of spec.md §3.
// Persistence is delegated to an injected KeyStore, matching the
// Non-goals' "no bundled storage backend" boundary while still giving
// callers a concrete place to plug one in, the way the teacher's
// cmd/gen_keys prints keys for a caller to persist however it likes.
package account

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"otrng/crypto/ed448"
	"otrng/wire"
)

// Account is the local party's long-term identity: its instance tag
// and long-term Ed448 signing keypair. The forging keypair used to
// sign client profiles is kept alongside it since both are generated
// and persisted together.
type Account struct {
	InstanceTag wire.InstanceTag
	LongTerm    *ed448.KeyPair
	Forging     *ed448.KeyPair
}

// New generates a fresh account: a random instance tag (spec.md §4.1
// requires tags >= 0x100) and fresh long-term and forging keypairs.
func New() (*Account, error) {
	tag, err := randomInstanceTag()
	if err != nil {
		return nil, err
	}
	longTerm, err := ed448.Generate()
	if err != nil {
		return nil, err
	}
	forging, err := ed448.Generate()
	if err != nil {
		return nil, err
	}
	return &Account{InstanceTag: tag, LongTerm: longTerm, Forging: forging}, nil
}

func randomInstanceTag() (wire.InstanceTag, error) {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		tag := wire.InstanceTag(binary.BigEndian.Uint32(buf[:]))
		if tag.Valid() {
			return tag, nil
		}
	}
}

// KeyStore is the persistence seam the Non-goals require: otrng ships
// no storage backend of its own, only this interface and a demo
// implementation under cmd/.
type KeyStore interface {
	Save(acc *Account) error
	Load() (*Account, error)
}

// ErrNoAccount is returned by a KeyStore when no account has been
// saved yet.
var ErrNoAccount = fmt.Errorf("account: no account in store")
