package query

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Namespace is the first segment of every key.
const Namespace = "postgrest"

// Key kinds.
const (
	KindTable = "table"
	KindRPC   = "rpc"
)

// View segments keep the result shapes cached for one table apart.
const (
	ViewList   = "list"
	ViewItem   = "item"
	ViewSelect = "select"
)

const (
	keyHashBytes      = 16
	keyPrefixSegments = 3
)

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Key identifies a cached query. Keys sharing a prefix can be invalidated
// together, e.g. TableKey("people", nil) covers every query on people.
type Key []string

// TableKey builds the key for a table query. A nil params yields the bare
// table prefix.
func TableKey(resource string, params any) Key {
	return buildKey(KindTable, resource, params)
}

// TableViewKey builds the key for one view of a table query. Every view key
// lies under TableKey(resource, nil).
func TableViewKey(resource, view string, params any) Key {
	return append(Key{Namespace, KindTable, resource, view}, TableKey(resource, params)[keyPrefixSegments:]...)
}

// RPCKey builds the key for a function call.
func RPCKey(fn string, args, params any) Key {
	return buildKey(KindRPC, fn, args, params)
}

func buildKey(kind, name string, parts ...any) Key {
	key := Key{Namespace, kind, name}

	for _, part := range parts {
		if isEmpty(part) {
			continue
		}

		encoded, err := StableStringify(part)
		if err != nil {
			encoded = fmt.Sprintf("%#v", part)
		}

		key = append(key, encoded)
	}

	return key
}

// isEmpty treats nil values and typed nil pointers, maps and slices as
// absent segments.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	raw, err := json.Marshal(v)

	return err == nil && string(raw) == "null"
}

// StableStringify renders v as JSON with object keys sorted at every depth,
// so equal values always produce the same string.
func StableStringify(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding key segment: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var generic any

	err = decoder.Decode(&generic)
	if err != nil {
		return "", fmt.Errorf("normalizing key segment: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	sorted, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encoding key segment: %w", err)
	}

	return string(sorted), nil
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}

	for i, segment := range prefix {
		if k[i] != segment {
			return false
		}
	}

	return true
}

// String renders the key as a JSON array.
func (k Key) String() string {
	raw, _ := json.Marshal([]string(k))

	return string(raw)
}

// StorageKey renders k as a dot-separated key that is valid for every cache
// backend, including NATS KV. The name segment is kept readable and the
// parameter segments are hashed. The storage key of a prefix is a
// dot-boundary prefix of the storage keys it covers.
func (k Key) StorageKey() string {
	segments := make([]string, 0, len(k))

	for i, segment := range k {
		if i < keyPrefixSegments {
			segments = append(segments, escapeSegment(segment))

			continue
		}

		sum := sha256.Sum256([]byte(segment))
		segments = append(segments, hex.EncodeToString(sum[:keyHashBytes]))
	}

	return strings.Join(segments, ".")
}

func escapeSegment(segment string) string {
	if safeSegment.MatchString(segment) {
		return segment
	}

	return "_" + base64.RawURLEncoding.EncodeToString([]byte(segment))
}

// MatchesPrefix reports whether storageKey is prefix itself or lies below it.
func MatchesPrefix(storageKey, prefix string) bool {
	if prefix == "" || storageKey == prefix {
		return true
	}

	return strings.HasPrefix(storageKey, prefix+".")
}
