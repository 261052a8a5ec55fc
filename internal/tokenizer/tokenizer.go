// Package tokenizer abstracts text<->token counting behind a small
// interface, backed by tiktoken-go for real models and a whitespace-based
// mock for offline/test runs.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts, extracts, and trims text against a model's token
// budget.
type Tokenizer interface {
	CountTokens(text string) int
	// ExtractTokens returns the raw token ids for text.
	ExtractTokens(text string) []int
	// DecodeSingleToken renders one token id back to its text form.
	DecodeSingleToken(id int) string
	// TrimToMax trims text to at most maxTokens tokens, preserving the
	// leading portion of the text.
	TrimToMax(text string, maxTokens int) string
}

// TiktokenTokenizer wraps tiktoken-go's BPE encoder for a specific model.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// New returns a Tokenizer for the given model name, falling back to the
// cl100k_base encoding (used by gpt-4/gpt-3.5) when the model is unknown.
func New(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) ExtractTokens(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) DecodeSingleToken(id int) string {
	return t.enc.Decode([]int{id})
}

func (t *TiktokenTokenizer) TrimToMax(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// Mock is a whitespace-token approximation for offline runs and tests,
// avoiding a network-backed tokenizer download. Nothing in this module
// selects it automatically. Token ids are assigned per distinct word on first
// sight, so ExtractTokens/DecodeSingleToken round-trip within one
// instance.
type Mock struct {
	mu    sync.Mutex
	ids   map[string]int
	vocab map[int]string
}

// NewMock creates a Mock with an empty vocabulary.
func NewMock() *Mock {
	return &Mock{ids: map[string]int{}, vocab: map[int]string{}}
}

func (*Mock) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (m *Mock) ExtractTokens(text string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, f := range fields {
		id, ok := m.ids[f]
		if !ok {
			id = len(m.ids)
			m.ids[f] = id
			m.vocab[id] = f
		}
		out[i] = id
	}
	return out
}

func (m *Mock) DecodeSingleToken(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vocab[id]
}

func (*Mock) TrimToMax(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	return strings.Join(fields[:maxTokens], " ")
}
