// Package encoding provides utilities for encoding and decoding NIP-98 HTTP
// authorization events. It handles the canonical serialisation used for event
// ids and the base64 JSON payload carried in the Authorization header.
package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// KindHTTPAuth is the Nostr event kind for HTTP authorization.
const KindHTTPAuth = 27235

// Scheme is the Authorization header scheme.
const Scheme = "Nostr"

// Event is a Nostr event as carried in an Authorization header.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// NewAuthEvent creates an unsigned HTTP authorization event for url and method.
func NewAuthEvent(pubKey, url, method string, createdAt int64) Event {
	return Event{
		PubKey:    pubKey,
		CreatedAt: createdAt,
		Kind:      KindHTTPAuth,
		Tags: [][]string{
			{"u", url},
			{"method", strings.ToUpper(method)},
		},
		Content: "",
	}
}

// Tag returns the first value of the tag named name.
func (e Event) Tag(name string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// Serialize returns the canonical form hashed into the event id:
// [0, pubkey, created_at, kind, tags, content] without HTML escaping.
func (e Event) Serialize() ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content}); err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Hash returns the sha256 of the serialized event.
func (e Event) Hash() ([32]byte, error) {
	data, err := e.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// ComputeID returns the hex-encoded event id.
func (e Event) ComputeID() (string, error) {
	h, err := e.Hash()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h[:]), nil
}

// EncodeEvent converts an Event to a base64-encoded JSON string.
//
// Returns an error if JSON marshaling fails.
func EncodeEvent(event Event) (string, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return base64.StdEncoding.EncodeToString(eventJSON), nil
}

// DecodeEvent converts a base64-encoded JSON string to an Event.
//
// Returns an error if base64 decoding or JSON unmarshaling fails.
func DecodeEvent(encoded string) (Event, error) {
	var event Event

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return event, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return event, nil
}

// EncodeAuthHeader renders the Authorization header value for a signed event.
func EncodeAuthHeader(event Event) (string, error) {
	encoded, err := EncodeEvent(event)
	if err != nil {
		return "", err
	}
	return Scheme + " " + encoded, nil
}

// DecodeAuthHeader parses an Authorization header value produced by EncodeAuthHeader.
func DecodeAuthHeader(header string) (Event, error) {
	scheme, payload, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return Event{}, fmt.Errorf("unsupported authorization scheme in %q", header)
	}
	return DecodeEvent(strings.TrimSpace(payload))
}
