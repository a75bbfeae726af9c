package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the byte length of newly generated tokens unless configured otherwise.
const DefaultSize = 32

var (
	// ErrCryptoFailure is returned when the random source fails.
	ErrCryptoFailure = errors.New("token: random source failure")
	// ErrInvalidEncoding is returned when transport text is not unpadded URL-safe base64.
	ErrInvalidEncoding = errors.New("token: invalid encoding")
	// ErrInvalidLength is returned when a caller-provided buffer is too small.
	ErrInvalidLength = errors.New("token: invalid length")
)

var encoding = base64.RawURLEncoding

// randReader is swapped in tests to simulate RNG failure.
var randReader io.Reader = rand.Reader

// Value is an immutable token byte string. The zero Value is empty.
type Value struct {
	b string
}

// Generate returns a Value of size bytes read from the system CSPRNG.
func Generate(size int) (Value, error) {
	if size < 0 {
		return Value{}, fmt.Errorf("%w: negative size %d", ErrInvalidLength, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return Value{b: string(buf)}, nil
}

// FromBytes copies raw into a new Value.
func FromBytes(raw []byte) Value {
	return Value{b: string(raw)}
}

// Decode parses transport text produced by [Value.Encode].
func Decode(text string) (Value, error) {
	raw, err := encoding.DecodeString(text)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return Value{b: string(raw)}, nil
}

// DecodeInto decodes text into dst and returns the number of bytes written.
// It fails with ErrInvalidLength when dst cannot hold the decoded value.
func DecodeInto(text string, dst []byte) (int, error) {
	need := encoding.DecodedLen(len(text))
	if len(dst) < need {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidLength, need, len(dst))
	}
	n, err := encoding.Decode(dst, []byte(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return n, nil
}

// EncodedLen returns the transport text length of an n-byte value.
func EncodedLen(n int) int {
	return encoding.EncodedLen(n)
}

// Encode returns the transport text form of v.
func (v Value) Encode() string {
	return encoding.EncodeToString([]byte(v.b))
}

// EncodeInto writes the transport text of v into dst and returns the number
// of bytes written.
func (v Value) EncodeInto(dst []byte) (int, error) {
	need := encoding.EncodedLen(len(v.b))
	if len(dst) < need {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidLength, need, len(dst))
	}
	encoding.Encode(dst, []byte(v.b))
	return need, nil
}

// Bytes returns a copy of the raw token bytes.
func (v Value) Bytes() []byte {
	return []byte(v.b)
}

// Len reports the raw byte length.
func (v Value) Len() int { return len(v.b) }

// IsZero reports whether v holds no bytes.
func (v Value) IsZero() bool { return len(v.b) == 0 }

// Equal compares two values byte for byte in constant time.
func (v Value) Equal(other Value) bool {
	if len(v.b) != len(other.b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.b), []byte(other.b)) == 1
}

// Key returns the raw bytes as a string. Storage backends key records by it;
// it is not transport text.
func (v Value) Key() string { return v.b }

// String redacts the value so tokens do not leak through fmt or logs.
func (v Value) String() string {
	return fmt.Sprintf("token.Value(%d bytes)", len(v.b))
}
