package dataset

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Splitter cuts text into the tokens a Vocab indexes. Concatenating the
// tokens of Split(text) must give back text.
type Splitter interface {
	Split(text string) []string
	Name() string
}

// NewSplitter returns the splitter named "char" or "tiktoken".
func NewSplitter(name string) (Splitter, error) {
	switch name {
	case "char", "":
		return CharSplitter{}, nil
	case "tiktoken":
		return NewTikTokenSplitter(DefaultTikTokenEncoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q (want char or tiktoken)", name)
	}
}

// CharSplitter splits text into Unicode code points.
type CharSplitter struct{}

// Split returns one token per rune.
func (CharSplitter) Split(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

// Name returns "char".
func (CharSplitter) Name() string {
	return "char"
}

// DefaultTikTokenEncoding is the encoding used by NewSplitter("tiktoken").
const DefaultTikTokenEncoding = "cl100k_base"

// Encoder is the subset of *tiktoken.Tiktoken used for splitting.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// TikTokenSplitter splits text into the byte-pair pieces of a tiktoken
// encoding. Pieces that cut a multi-byte rune are kept as raw bytes, so
// concatenation still reproduces the input.
type TikTokenSplitter struct {
	encoder Encoder
	name    string
}

// NewTikTokenSplitter loads a tiktoken encoding by name
// ("cl100k_base", "p50k_base", "r50k_base").
func NewTikTokenSplitter(encodingName string) (*TikTokenSplitter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return NewTikTokenSplitterFrom(encoding, encodingName), nil
}

// NewTikTokenSplitterFrom wraps an already loaded encoder.
func NewTikTokenSplitterFrom(encoder Encoder, name string) *TikTokenSplitter {
	return &TikTokenSplitter{encoder: encoder, name: name}
}

// Split encodes text and decodes each token id back to its piece.
func (t *TikTokenSplitter) Split(text string) []string {
	ids := t.encoder.Encode(text, nil, nil)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.encoder.Decode([]int{id})
	}
	return out
}

// Name returns "tiktoken:" followed by the encoding name.
func (t *TikTokenSplitter) Name() string {
	return "tiktoken:" + t.name
}
