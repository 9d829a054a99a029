package netbios

import (
	"bytes"
	"testing"
)

func TestEncodeNameLength(t *testing.T) {
	enc := EncodeName("3DS-AB12", 0x20)
	if len(enc) != EncodedNameLength {
		t.Fatalf("expected %d bytes, got %d", EncodedNameLength, len(enc))
	}
}

func TestEncodeNameKnownVector(t *testing.T) {
	// "3DS-AB12" padded to 15 chars with spaces, suffix 0x20, nibble-encoded.
	enc := EncodeName("3DS-AB12", 0x20)
	want := make([]byte, 0, EncodedNameLength)
	raw := []byte("3DS-AB12       ")
	raw = append(raw, 0x20)
	for _, c := range raw {
		want = append(want, 'A'+(c>>4), 'A'+(c&0x0F))
	}
	if !bytes.Equal(enc, want) {
		t.Errorf("expected %v, got %v", want, enc)
	}
}

func TestEncodeNameUppercases(t *testing.T) {
	lower := EncodeName("abc", 0x20)
	upper := EncodeName("ABC", 0x20)
	if !bytes.Equal(lower, upper) {
		t.Error("expected case-insensitive encoding")
	}
}

func TestEncodeNameTruncatesLongNames(t *testing.T) {
	enc := EncodeName("THIS-NAME-IS-WAY-TOO-LONG", 0x20)
	if len(enc) != EncodedNameLength {
		t.Fatalf("expected %d bytes even for long names, got %d", EncodedNameLength, len(enc))
	}
}
