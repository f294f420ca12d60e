package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.txt")
	writeFile(t, path, "كتاب\tkitab\n\nقلم\tqalam\r\n")

	pairs, err := LoadPairs(path)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{"كتاب", "kitab"}, {"قلم", "qalam"}}, pairs)
}

func TestLoadPairs_Errors(t *testing.T) {
	dir := t.TempDir()

	noTab := filepath.Join(dir, "notab.txt")
	writeFile(t, noTab, "abc def\n")
	_, err := LoadPairs(noTab)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":1: missing tab")

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "\n\n")
	_, err = LoadPairs(empty)
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	_, err = LoadCorpus(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, TrainFile), "ab\tAB\n")
	writeFile(t, filepath.Join(dir, DevFile), "b\tB\n")
	writeFile(t, filepath.Join(dir, TestFile), "a\tA\n")

	c, err := LoadCorpus(dir)
	require.NoError(t, err)
	assert.Len(t, c.Train, 1)
	assert.Equal(t, "B", c.Dev[0].Target)
	assert.Equal(t, "a", c.Test[0].Source)
}

func TestVocab(t *testing.T) {
	v := BuildVocab([]string{"cab", "abc"}, CharSplitter{})

	assert.Equal(t, 7, v.Size())
	assert.Equal(t, "<pad>", v.Token(PadID))
	assert.Equal(t, "<eos>", v.Token(EOSID))
	assert.Equal(t, int32(4), v.ID("a"))
	assert.Equal(t, int32(6), v.ID("c"))
	assert.Equal(t, UNKID, v.ID("z"))
	assert.Equal(t, "<unk>", v.Token(99))

	assert.Equal(t, []int32{6, 4, UNKID}, v.Encode("caz"))
	assert.Equal(t, []int32{SOSID, 5, EOSID}, v.EncodeTarget("b"))
	assert.Equal(t, "ba", v.Decode([]int32{SOSID, 5, PadID, 4, EOSID, 6}))
}

func TestPairBatches(t *testing.T) {
	pairs := []Pair{{"ab", "x"}, {"a", "xyx"}, {"abab", "y"}}
	src := BuildVocab(SourceTexts(pairs), CharSplitter{})
	tgt := BuildVocab(TargetTexts(pairs), CharSplitter{})

	batches := PairBatches(pairs, src, tgt, 2, false, nil)
	require.Len(t, batches, 2)

	b := batches[0]
	assert.Equal(t, 2, b.Size)
	assert.Equal(t, 2, b.SrcLen)
	assert.Equal(t, 5, b.TgtLen)
	assert.Equal(t, []int{2, 1}, b.SrcLengths)
	a, bID := src.ID("a"), src.ID("b")
	assert.Equal(t, []int32{a, bID, a, PadID}, b.Src)
	x, y := tgt.ID("x"), tgt.ID("y")
	assert.Equal(t, []int32{
		SOSID, x, EOSID, PadID, PadID,
		SOSID, x, y, x, EOSID,
	}, b.Tgt)

	assert.Equal(t, 1, batches[1].Size)
	assert.Equal(t, []int{4}, batches[1].SrcLengths)
}

// fakeEncoder splits on spaces, keeping each space with the following word.
type fakeEncoder struct {
	pieces []string
}

func (f *fakeEncoder) Encode(text string, _, _ []string) []int {
	var ids []int
	for _, w := range strings.SplitAfter(text, " ") {
		if w == "" {
			continue
		}
		f.pieces = append(f.pieces, w)
		ids = append(ids, len(f.pieces)-1)
	}
	return ids
}

func (f *fakeEncoder) Decode(tokens []int) string {
	var sb strings.Builder
	for _, id := range tokens {
		sb.WriteString(f.pieces[id])
	}
	return sb.String()
}

func TestTikTokenSplitter(t *testing.T) {
	s := NewTikTokenSplitterFrom(&fakeEncoder{}, "fake")
	assert.Equal(t, "tiktoken:fake", s.Name())

	toks := s.Split("hello big world")
	assert.Equal(t, []string{"hello ", "big ", "world"}, toks)
	assert.Equal(t, "hello big world", strings.Join(toks, ""))

	v := BuildVocab([]string{"hello big world"}, s)
	assert.Equal(t, "hello big world", v.Decode(v.Encode("hello big world")))
}

func TestNewSplitter(t *testing.T) {
	s, err := NewSplitter("char")
	require.NoError(t, err)
	assert.Equal(t, []string{"ق", "ل", "م"}, s.Split("قلم"))

	_, err = NewSplitter("wordpiece")
	assert.Error(t, err)
}
