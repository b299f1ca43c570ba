package script

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

// absentToken spells an absent value in scripts and output.
const absentToken = "<nil>"

// emptyToken spells a present, zero-length value.
const emptyToken = `""`

// ErrBadLiteral is returned for keys or values that cannot be parsed.
var ErrBadLiteral = errors.New("bad literal")

// ParseBytes parses a key or value token: 0x-prefixed hex, "" for empty,
// anything else literally.
func ParseBytes(tok string) ([]byte, error) {
	if tok == emptyToken {
		return []byte{}, nil
	}

	if rest, ok := strings.CutPrefix(tok, "0x"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadLiteral, tok, err)
		}

		return b, nil
	}

	return []byte(tok), nil
}

// ParseValue is like [ParseBytes] but also accepts <nil> for absence.
func ParseValue(tok string) (txcache.Value, error) {
	if tok == absentToken {
		return txcache.Absent, nil
	}

	b, err := ParseBytes(tok)
	if err != nil {
		return txcache.Value{}, err
	}

	return txcache.SomeValue(b), nil
}

// FormatBytes renders b so that [ParseBytes] reads it back.
func FormatBytes(b []byte) string {
	if len(b) == 0 {
		return emptyToken
	}

	s := string(b)
	if s == absentToken || s == emptyToken || strings.HasPrefix(s, "0x") || !isPlain(s) {
		return "0x" + hex.EncodeToString(b)
	}

	return s
}

// FormatValue renders v so that [ParseValue] reads it back.
func FormatValue(v txcache.Value) string {
	if !v.Exists() {
		return absentToken
	}

	return FormatBytes(v.Bytes())
}

// FormatKey renders a cache key, with its version if it has one.
func FormatKey(k txcache.CacheKey) string {
	out := FormatBytes(k.StorageKey().Bytes())
	if h, ok := k.Version().Get(); ok {
		out = fmt.Sprintf("%s@%d", out, h)
	}

	return out
}

// FormatEntry renders an entry as "key value".
func FormatEntry(e txcache.Entry) string {
	return FormatKey(e.Key) + " " + FormatValue(e.Value)
}

func isPlain(s string) bool {
	for i := range len(s) {
		if s[i] <= ' ' || s[i] > '~' || s[i] == '#' {
			return false
		}
	}

	return true
}
