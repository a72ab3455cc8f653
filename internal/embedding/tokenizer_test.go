package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS, got %d", ids[0])
	}
	if ids[3] != tokenSEP {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	want := []int64{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}
	for i := range want {
		if attn[i] != want[i] {
			t.Errorf("attention[%d] = %d, want %d", i, attn[i], want[i])
		}
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if ids[3] != tokenSEP {
		t.Errorf("last token = %d, want SEP", ids[3])
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attention[%d] = 0", i)
		}
	}
}

func TestSimpleTokenizer_caseInsensitive(t *testing.T) {
	tok := &SimpleTokenizer{}
	a, _, _ := tok.Tokenize("Go", 4)
	b, _, _ := tok.Tokenize("go", 4)
	if a[1] != b[1] {
		t.Error("expected case-insensitive token ids")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	long := "a very long string that would overflow a naive signed accumulator many times over"
	if HashString(long) < 0 {
		t.Error("hash should be non-negative")
	}
}
