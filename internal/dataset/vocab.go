package dataset

import (
	"sort"
	"strings"
)

// Reserved token ids shared by every vocabulary.
const (
	PadID int32 = iota
	SOSID
	EOSID
	UNKID
)

// Reserved token strings, in id order.
var specialTokens = []string{"<pad>", "<sos>", "<eos>", "<unk>"}

// Vocab maps tokens produced by a Splitter to dense ids.
type Vocab struct {
	splitter Splitter
	tokens   []string
	index    map[string]int32
}

// BuildVocab collects every token of texts. Tokens are assigned ids in
// sorted order after the four reserved ones, so the result does not
// depend on the order of texts.
func BuildVocab(texts []string, splitter Splitter) *Vocab {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, tok := range splitter.Split(text) {
			seen[tok] = struct{}{}
		}
	}
	for _, s := range specialTokens {
		delete(seen, s)
	}
	sorted := make([]string, 0, len(seen))
	for tok := range seen {
		sorted = append(sorted, tok)
	}
	sort.Strings(sorted)

	v := &Vocab{
		splitter: splitter,
		tokens:   append(append([]string(nil), specialTokens...), sorted...),
		index:    make(map[string]int32, len(specialTokens)+len(sorted)),
	}
	for i, tok := range v.tokens {
		v.index[tok] = int32(i) //nolint:gosec // vocabularies are far below 2^31
	}
	return v
}

// SourceTexts returns the source side of pairs.
func SourceTexts(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Source
	}
	return out
}

// TargetTexts returns the target side of pairs.
func TargetTexts(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Target
	}
	return out
}

// Size returns the number of ids, reserved ones included.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// ID returns the id of tok, or UNKID.
func (v *Vocab) ID(tok string) int32 {
	if id, ok := v.index[tok]; ok {
		return id
	}
	return UNKID
}

// Token returns the token for id, or "<unk>" for an id out of range.
func (v *Vocab) Token(id int32) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return specialTokens[UNKID]
	}
	return v.tokens[id]
}

// Encode splits text and maps each token to its id.
func (v *Vocab) Encode(text string) []int32 {
	toks := v.splitter.Split(text)
	ids := make([]int32, len(toks))
	for i, tok := range toks {
		ids[i] = v.ID(tok)
	}
	return ids
}

// EncodeTarget is Encode wrapped in <sos> ... <eos>.
func (v *Vocab) EncodeTarget(text string) []int32 {
	ids := make([]int32, 0, len(text)+2)
	ids = append(ids, SOSID)
	ids = append(ids, v.Encode(text)...)
	return append(ids, EOSID)
}

// Decode joins the tokens of ids. It skips <pad> and <sos> and stops at
// the first <eos>.
func (v *Vocab) Decode(ids []int32) string {
	var sb strings.Builder
	for _, id := range ids {
		switch id {
		case EOSID:
			return sb.String()
		case PadID, SOSID:
			continue
		}
		sb.WriteString(v.Token(id))
	}
	return sb.String()
}
