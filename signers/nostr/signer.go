// Package nostr provides a NIP-98 request signer backed by a secp256k1 key.
// The key must already be available to the caller; this package never
// generates or stores key material.
package nostr

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/encoding"
)

// Signer signs HTTP authorization events with BIP-340 schnorr signatures.
type Signer struct {
	privateKey *btcec.PrivateKey
	publicKey  string
	now        func() time.Time
}

type Option func(*Signer) error

var _ lnvps.Signer = (*Signer)(nil)

// NewSigner creates a signer from a hex-encoded 32 byte private key.
func NewSigner(privateKeyHex string, opts ...Option) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, lnvps.ErrInvalidKey
	}

	priv, _ := btcec.PrivKeyFromBytes(crypto.FromECDSA(key))
	return newSigner(priv, opts...)
}

// NewSignerFromKey creates a signer from an already parsed key.
func NewSignerFromKey(key *btcec.PrivateKey, opts ...Option) (*Signer, error) {
	if key == nil {
		return nil, lnvps.ErrInvalidKey
	}
	return newSigner(key, opts...)
}

func newSigner(key *btcec.PrivateKey, opts ...Option) (*Signer, error) {
	s := &Signer{
		privateKey: key,
		publicKey:  hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
		now:        time.Now,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// PublicKey returns the hex x-only public key.
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// SignHTTPRequest implements lnvps.Signer.
func (s *Signer) SignHTTPRequest(ctx context.Context, url, method string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	event, err := s.SignEvent(encoding.NewAuthEvent(s.publicKey, url, method, s.now().Unix()))
	if err != nil {
		return "", err
	}
	return encoding.EncodeAuthHeader(event)
}

// SignEvent computes the id of event and signs it. PubKey is overwritten with
// the signer's key.
func (s *Signer) SignEvent(event encoding.Event) (encoding.Event, error) {
	event.PubKey = s.publicKey

	hash, err := event.Hash()
	if err != nil {
		return event, err
	}

	sig, err := schnorr.Sign(s.privateKey, hash[:])
	if err != nil {
		return event, fmt.Errorf("failed to sign event: %w", err)
	}

	event.ID = hex.EncodeToString(hash[:])
	event.Sig = hex.EncodeToString(sig.Serialize())
	return event, nil
}
