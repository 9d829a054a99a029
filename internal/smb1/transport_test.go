package smb1

import "testing"

func TestTransportNextMIDMonotonic(t *testing.T) {
	tr := &Transport{}
	seen := make(map[uint16]bool)
	for i := 0; i < 1000; i++ {
		mid := tr.NextMID()
		if mid == 0 {
			t.Fatalf("mid is zero at iteration %d", i)
		}
		if seen[mid] {
			t.Fatalf("duplicate mid 0x%04X at iteration %d", mid, i)
		}
		seen[mid] = true
	}
}

func TestTransportNextMIDWraps(t *testing.T) {
	tr := &Transport{mid: 0xFFFF}
	mid := tr.NextMID()
	if mid != 1 {
		t.Fatalf("mid after wraparound = %d, want 1", mid)
	}
}
