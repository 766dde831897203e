package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_Empty(t *testing.T) {
	for _, limit := range []int{1, 5, DefaultLimit} {
		if got := Split("", limit); len(got) != 0 {
			t.Errorf("Split(\"\", %d) = %q, want empty", limit, got)
		}
	}
}

func TestSplit_FitsInOnePiece(t *testing.T) {
	tests := []struct {
		text  string
		limit int
	}{
		{"a", 1},
		{"hello", 5},
		{"hello", 100},
		{"привет", 6},
	}
	for _, tt := range tests {
		got := Split(tt.text, tt.limit)
		if len(got) != 1 || got[0] != tt.text {
			t.Errorf("Split(%q, %d) = %q, want [%q]", tt.text, tt.limit, got, tt.text)
		}
	}
}

func TestSplit_RoundTripAndSizes(t *testing.T) {
	texts := []string{
		"abcdefghij",
		"abcdefghijk",
		strings.Repeat("x", 7801),
		"日本語のテキストを分割する",
		"mixed ascii и кириллица 🙂🙂🙂 end",
	}
	for _, text := range texts {
		for limit := 1; limit <= 12; limit++ {
			pieces := Split(text, limit)
			if joined := strings.Join(pieces, ""); joined != text {
				t.Fatalf("Split(%q, %d) does not round-trip: %q", text, limit, joined)
			}
			for i, p := range pieces {
				n := utf8.RuneCountInString(p)
				if p == "" {
					t.Fatalf("Split(%q, %d) piece %d is empty", text, limit, i)
				}
				if n > limit {
					t.Fatalf("Split(%q, %d) piece %d has %d runes", text, limit, i, n)
				}
				if i < len(pieces)-1 && n != limit {
					t.Fatalf("Split(%q, %d) non-final piece %d has %d runes, want %d", text, limit, i, n, limit)
				}
			}
			total := utf8.RuneCountInString(text)
			if want := (total + limit - 1) / limit; len(pieces) != want {
				t.Fatalf("Split(%q, %d) produced %d pieces, want %d", text, limit, len(pieces), want)
			}
		}
	}
}

func TestSplit_DefaultLimit(t *testing.T) {
	text := strings.Repeat("a", DefaultLimit*2+1)
	pieces := Split(text, 0)
	if len(pieces) != 3 {
		t.Fatalf("got %d pieces, want 3", len(pieces))
	}
	if len(pieces[0]) != DefaultLimit || len(pieces[2]) != 1 {
		t.Fatalf("unexpected piece sizes %d/%d/%d", len(pieces[0]), len(pieces[1]), len(pieces[2]))
	}
}
