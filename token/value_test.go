package token

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateRoundTrip(t *testing.T) {
	for n := 0; n < 128; n++ {
		v, err := Generate(n)
		if err != nil {
			t.Fatalf("Generate(%d): %v", n, err)
		}
		if v.Len() != n {
			t.Fatalf("Generate(%d) len = %d", n, v.Len())
		}
		text := v.Encode()
		if strings.ContainsAny(text, "+/=") {
			t.Fatalf("encoding not URL-safe unpadded: %q", text)
		}
		got, err := Decode(text)
		if err != nil {
			t.Fatalf("Decode(%q): %v", text, err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch for n=%d", n)
		}
	}
}

func TestGenerateRandomFailure(t *testing.T) {
	prev := randReader
	randReader = failingReader{}
	defer func() { randReader = prev }()

	if _, err := Generate(32); !errors.Is(err, ErrCryptoFailure) {
		t.Fatalf("expected ErrCryptoFailure, got %v", err)
	}
	if _, err := GenerateAuth(32); !errors.Is(err, ErrCryptoFailure) {
		t.Fatalf("expected ErrCryptoFailure from GenerateAuth, got %v", err)
	}
}

func TestGenerateDistinct(t *testing.T) {
	a, _ := Generate(DefaultSize)
	b, _ := Generate(DefaultSize)
	if a.Equal(b) {
		t.Fatal("two generated tokens must differ")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, text := range []string{"a", "ab+c", "abc=", "!!!!", "ab/d"} {
		if _, err := Decode(text); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("Decode(%q): expected ErrInvalidEncoding, got %v", text, err)
		}
	}
}

func TestEncodeIntoBuffer(t *testing.T) {
	v := FromBytes([]byte{1, 2, 3, 4, 5})

	if _, err := v.EncodeInto(make([]byte, 2)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	buf := make([]byte, EncodedLen(v.Len()))
	n, err := v.EncodeInto(buf)
	if err != nil {
		t.Fatalf("EncodeInto: %v", err)
	}
	if string(buf[:n]) != v.Encode() {
		t.Fatalf("EncodeInto = %q, want %q", buf[:n], v.Encode())
	}
}

func TestDecodeIntoBuffer(t *testing.T) {
	raw := []byte("0123456789")
	text := FromBytes(raw).Encode()

	if _, err := DecodeInto(text, make([]byte, 3)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	dst := make([]byte, 32)
	n, err := DecodeInto(text, dst)
	if err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if !bytes.Equal(dst[:n], raw) {
		t.Fatalf("DecodeInto = %x, want %x", dst[:n], raw)
	}
}

func TestValueImmutable(t *testing.T) {
	raw := []byte{9, 9, 9}
	v := FromBytes(raw)
	raw[0] = 0
	out := v.Bytes()
	out[1] = 0
	if !bytes.Equal(v.Bytes(), []byte{9, 9, 9}) {
		t.Fatalf("value mutated through caller slices: %x", v.Bytes())
	}
}

func TestStringRedacts(t *testing.T) {
	v := FromBytes([]byte("secret-bytes"))
	if strings.Contains(v.String(), "secret") {
		t.Fatalf("String leaked token bytes: %s", v)
	}
	a := NewAuth(v)
	if strings.Contains(a.String(), v.Encode()) {
		t.Fatalf("Auth.String leaked transport text")
	}
}
