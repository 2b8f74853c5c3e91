package prekeyclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"

	"otrng/configs"
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/profile"
	"otrng/wire"
)

// Store persists the private halves of published prekey material
// (profile.PrekeySecrets), keyed by owning identity and prekey
// identifier, so a later DAKE2 can complete publication proofs without
// regenerating prekey messages. Grounded in the teacher's
// client.ChatApp save/load pair, substituting a per-secret key (rather
// than one blob per ratchet session) since prekey secrets are deleted
// individually as the server consumes them.
type Store struct {
	rdb *redis.Client
}

// NewStore opens a Store against configs.RedisAddress.
func NewStore() *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: configs.RedisAddress})}
}

func secretKey(identity string, identifier uint32) string {
	return fmt.Sprintf(configs.PrekeySecretKey, identity, identifier)
}

func encodeSecrets(id uint32, s *profile.PrekeySecrets) []byte {
	e := wire.NewEncoder()
	e.Uint32(id)
	e.Scalar(s.ECDHPrivate)
	e.MPI(s.DHPrivate.Exponent().Bytes())
	return e.Bytes()
}

func decodeSecrets(b []byte) (uint32, *profile.PrekeySecrets, error) {
	d := wire.NewDecoder(b)
	id, err := d.Uint32()
	if err != nil {
		return 0, nil, err
	}
	ecdh, err := d.Scalar()
	if err != nil {
		return 0, nil, err
	}
	dhBytes, err := d.MPI()
	if err != nil {
		return 0, nil, err
	}
	if !d.Done() {
		return 0, nil, errMalformedProof
	}
	dhPriv := dh3072.PrivateKeyFromExponent(new(big.Int).SetBytes(dhBytes))
	return id, &profile.PrekeySecrets{ECDHPrivate: ecdh, DHPrivate: dhPriv}, nil
}

// Save persists the secret half of one published prekey message under
// its owning identity and identifier.
func (s *Store) Save(identity string, identifier uint32, secrets *profile.PrekeySecrets) error {
	return s.rdb.Set(context.Background(), secretKey(identity, identifier), encodeSecrets(identifier, secrets), 0).Err()
}

// Load recovers a previously saved secret, returning
// (nil, nil) if nothing is on file for it.
func (s *Store) Load(identity string, identifier uint32) (*profile.PrekeySecrets, error) {
	data, err := s.rdb.Get(context.Background(), secretKey(identity, identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_, secrets, err := decodeSecrets(data)
	if err != nil {
		return nil, err
	}
	return secrets, nil
}

// Delete removes a secret once the server has confirmed it was
// consumed (spec.md §4.10: published prekey messages are one-shot).
func (s *Store) Delete(identity string, identifier uint32) error {
	return s.rdb.Del(context.Background(), secretKey(identity, identifier)).Err()
}

// EphemeralKeyPair draws a fresh prekey message's ECDH/DH material, the
// companion to what callers publish via Engine.StartPublish.
func EphemeralKeyPair() (ed448.PublicKey, *profile.PrekeySecrets, *dh3072.PublicKey, error) {
	ecdhPriv, err := ed448.RandomScalar()
	if err != nil {
		return ed448.PublicKey{}, nil, nil, err
	}
	ecdhPub := ed448.PublicFromPoint(ed448.ScalarBaseMult(ecdhPriv))

	dhPriv, dhPub, err := dh3072.New()
	if err != nil {
		return ed448.PublicKey{}, nil, nil, err
	}

	return ecdhPub, &profile.PrekeySecrets{ECDHPrivate: ecdhPriv, DHPrivate: dhPriv}, dhPub, nil
}
