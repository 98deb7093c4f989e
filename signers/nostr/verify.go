package nostr

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/lnvps/lnvps-go/encoding"
)

// VerifyEvent checks the id and schnorr signature of event.
func VerifyEvent(event encoding.Event) error {
	id, err := event.ComputeID()
	if err != nil {
		return err
	}
	if id != event.ID {
		return fmt.Errorf("event id mismatch: got %s, computed %s", event.ID, id)
	}

	pubBytes, err := hex.DecodeString(event.PubKey)
	if err != nil {
		return fmt.Errorf("invalid pubkey: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("invalid pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(event.Sig)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	idBytes, _ := hex.DecodeString(event.ID)
	if !sig.Verify(idBytes, pub) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// VerifyAuthHeader decodes and verifies an Authorization header for the exact
// url and method. created_at must be within window of now.
func VerifyAuthHeader(header, url, method string, now time.Time, window time.Duration) (encoding.Event, error) {
	event, err := encoding.DecodeAuthHeader(header)
	if err != nil {
		return event, err
	}
	if event.Kind != encoding.KindHTTPAuth {
		return event, fmt.Errorf("unexpected event kind %d", event.Kind)
	}
	if u, _ := event.Tag("u"); u != url {
		return event, fmt.Errorf("url tag %q does not match %q", u, url)
	}
	if m, _ := event.Tag("method"); !strings.EqualFold(m, method) {
		return event, fmt.Errorf("method tag %q does not match %q", m, method)
	}
	created := time.Unix(event.CreatedAt, 0)
	if d := now.Sub(created); d > window || d < -window {
		return event, fmt.Errorf("event created_at %v outside of %v window", created, window)
	}
	return event, VerifyEvent(event)
}
