package tokenizer_test

import (
	"strings"
	"testing"

	"github.com/cognee-core/engine/internal/tokenizer"
)

func TestMockCountTokens(t *testing.T) {
	m := tokenizer.NewMock()
	if got := m.CountTokens("the quick brown fox"); got != 4 {
		t.Fatalf("expected 4 whitespace tokens, got %d", got)
	}
	if got := m.CountTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
}

func TestMockExtractAndDecodeRoundTrip(t *testing.T) {
	m := tokenizer.NewMock()
	ids := m.ExtractTokens("alpha beta alpha")
	if len(ids) != 3 {
		t.Fatalf("expected 3 token ids, got %v", ids)
	}
	if ids[0] != ids[2] {
		t.Fatalf("expected repeated words to share an id, got %v", ids)
	}
	if got := m.DecodeSingleToken(ids[1]); got != "beta" {
		t.Fatalf("expected id %d to decode to \"beta\", got %q", ids[1], got)
	}
	if got := m.DecodeSingleToken(9999); got != "" {
		t.Fatalf("expected unknown id to decode to empty string, got %q", got)
	}
}

func TestMockTrimToMax(t *testing.T) {
	m := tokenizer.NewMock()
	text := "one two three four five"

	if got := m.TrimToMax(text, 3); got != "one two three" {
		t.Fatalf("expected trimmed prefix, got %q", got)
	}
	if got := m.TrimToMax(text, 100); got != text {
		t.Fatalf("expected text unchanged when under budget, got %q", got)
	}
	if got := m.TrimToMax(text, 0); got != "" {
		t.Fatalf("expected empty string for maxTokens<=0, got %q", got)
	}
}

func TestMockTrimToMaxPreservesLeadingPortion(t *testing.T) {
	m := tokenizer.NewMock()
	fields := strings.Fields(m.TrimToMax("a b c d e f g h", 3))
	if len(fields) != 3 || fields[0] != "a" || fields[2] != "c" {
		t.Fatalf("expected leading 3 fields preserved, got %v", fields)
	}
}

// tokenizer.New requires a real tiktoken BPE ranks file (fetched over the
// network on first use for an unknown cache dir), so it is exercised only
// via the interface it returns satisfying Tokenizer, not via an actual
// network-backed encode/decode round trip here.
func TestNewReturnsTokenizerInterface(t *testing.T) {
	var _ tokenizer.Tokenizer = (*tokenizer.TiktokenTokenizer)(nil)
	var _ tokenizer.Tokenizer = (*tokenizer.Mock)(nil)
}
