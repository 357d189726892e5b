package pop3

import "testing"

func TestSeqForPrefersUIDLMapping(t *testing.T) {
	s := &session{uidToSeq: map[string]int{"msg-abc": 3, "7": 12}}

	seq, ok := s.seqFor("msg-abc")
	if !ok || seq != 3 {
		t.Errorf("seqFor(msg-abc) = %d, %v", seq, ok)
	}

	// A uid that is also a number resolves through the map, not the
	// positional fallback.
	seq, ok = s.seqFor("7")
	if !ok || seq != 12 {
		t.Errorf("seqFor(7) = %d, %v", seq, ok)
	}
}

func TestSeqForPositionalFallback(t *testing.T) {
	s := &session{uidToSeq: map[string]int{}}

	seq, ok := s.seqFor("5")
	if !ok || seq != 5 {
		t.Errorf("seqFor(5) = %d, %v", seq, ok)
	}

	if _, ok := s.seqFor("not-listed"); ok {
		t.Error("unknown non-numeric uid resolved")
	}
	if _, ok := s.seqFor("0"); ok {
		t.Error("sequence numbers start at 1")
	}
}
