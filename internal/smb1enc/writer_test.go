package smb1enc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNewWriter(t *testing.T) {
	w := NewWriter(64)
	if w.Len() != 0 {
		t.Errorf("expected length 0, got %d", w.Len())
	}
	if w.Err() != nil {
		t.Errorf("expected no error, got %v", w.Err())
	}
}

func TestWriterWriteUint8(t *testing.T) {
	w := NewWriter(1)
	w.WriteUint8(0xFF)
	if !bytes.Equal(w.Bytes(), []byte{0xFF}) {
		t.Errorf("unexpected bytes: %v", w.Bytes())
	}
}

func TestWriterWriteUint16(t *testing.T) {
	w := NewWriter(2)
	w.WriteUint16(0x0311)
	b := w.Bytes()
	if len(b) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(b))
	}
	if v := binary.LittleEndian.Uint16(b); v != 0x0311 {
		t.Errorf("expected 0x0311, got 0x%04X", v)
	}
}

func TestWriterWriteUint32(t *testing.T) {
	w := NewWriter(4)
	w.WriteUint32(0xDEADBEEF)
	b := w.Bytes()
	if v := binary.LittleEndian.Uint32(b); v != 0xDEADBEEF {
		t.Errorf("expected 0xDEADBEEF, got 0x%08X", v)
	}
}

func TestWriterWriteBytes(t *testing.T) {
	w := NewWriter(4)
	w.WriteBytes([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	if !bytes.Equal(w.Bytes(), []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("unexpected bytes: %v", w.Bytes())
	}
}

func TestWriterWriteZeros(t *testing.T) {
	w := NewWriter(4)
	w.WriteZeros(4)
	if !bytes.Equal(w.Bytes(), []byte{0, 0, 0, 0}) {
		t.Errorf("unexpected bytes: %v", w.Bytes())
	}
}

func TestWriterPadAlignment(t *testing.T) {
	tests := []struct {
		name          string
		initialBytes  int
		alignment     int
		expectedTotal int
	}{
		{"already aligned", 8, 4, 8},
		{"needs 1 byte", 7, 8, 8},
		{"odd length to even", 1, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(16)
			w.WriteZeros(tt.initialBytes)
			w.Pad(tt.alignment)
			if w.Len() != tt.expectedTotal {
				t.Errorf("expected length %d, got %d", tt.expectedTotal, w.Len())
			}
		})
	}
}

func TestWriterWriteAt(t *testing.T) {
	w := NewWriter(4)
	w.WriteZeros(4)
	w.WriteAt(0, []byte{0xAB, 0xCD})
	if !bytes.Equal(w.Bytes(), []byte{0xAB, 0xCD, 0, 0}) {
		t.Errorf("unexpected bytes: %v", w.Bytes())
	}
}

func TestWriterWriteAtOutOfBounds(t *testing.T) {
	w := NewWriter(2)
	w.WriteZeros(2)
	w.WriteAt(1, []byte{0x01, 0x02})
	if w.Err() == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestWriterWriteCString(t *testing.T) {
	w := NewWriter(16)
	w.WriteCString("NT LM 0.12")
	expected := append([]byte("NT LM 0.12"), 0x00)
	if !bytes.Equal(w.Bytes(), expected) {
		t.Errorf("expected %v, got %v", expected, w.Bytes())
	}
}

func TestWriterErrorSticky(t *testing.T) {
	w := NewWriter(2)
	w.WriteZeros(2)
	w.WriteAt(1, []byte{0x01, 0x02}) // sets error
	before := w.Len()
	w.WriteUint32(0xFFFFFFFF) // must be a no-op
	if w.Len() != before {
		t.Errorf("expected no growth after error, len changed from %d to %d", before, w.Len())
	}
}
