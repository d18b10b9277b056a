// Package codec round-trips small game-session states through opaque
// tokens embeddable in UI component identifiers. The token is keyed to
// its hosting message: copying it to another message, or forging one
// without the server secret, yields bytes that fail to parse. This is
// obfuscation against casual tampering, not cryptographic integrity.
package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Token size is bounded: only two or three small integers are ever
// encoded. Anything larger is a misuse of this package.
const maxTokenLen = 64

// Codec errors.
var (
	ErrMalformedToken = errors.New("malformed state token")
	ErrFieldCount     = errors.New("unexpected state field count")
)

// Key is a per-message session key.
type Key [sha256.Size]byte

// SessionKey derives the key for a message from the hosting message id
// and the server secret.
func SessionKey(secret string, messageID int64) Key {
	return sha256.Sum256([]byte(fmt.Sprintf("%d_%s", messageID, secret)))
}

// Encode packs the values into a keyed opaque token.
func Encode(key Key, values ...int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	plain := []byte(strings.Join(parts, ":"))

	enc := make([]byte, len(plain))
	for i, b := range plain {
		enc[i] = b ^ key[i%len(key)]
	}
	return base64.RawURLEncoding.EncodeToString(enc)
}

// Decode unpacks a token produced by Encode with the same key. It
// expects exactly n values; a malformed or foreign-key token fails
// with ErrMalformedToken rather than decoding into defaults.
func Decode(key Key, token string, n int) ([]int64, error) {
	if token == "" || len(token) > maxTokenLen {
		return nil, ErrMalformedToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	plain := make([]byte, len(raw))
	for i, b := range raw {
		plain[i] = b ^ key[i%len(key)]
	}

	parts := strings.Split(string(plain), ":")
	if len(parts) != n {
		return nil, ErrFieldCount
	}

	values := make([]int64, n)
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d", ErrMalformedToken, i)
		}
		values[i] = v
	}
	return values, nil
}
