package dataset

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// Pair is one source/target example of a transduction corpus.
type Pair struct {
	Source string
	Target string
}

// Corpus holds the three partitions of a pair corpus.
type Corpus struct {
	Train, Dev, Test []Pair
}

// Corpus file names inside a data directory.
const (
	TrainFile = "train.txt"
	DevFile   = "dev.txt"
	TestFile  = "test.txt"
)

// LoadPairs reads tab-separated "source<TAB>target" lines. Blank lines
// are skipped; a line without a tab or with an empty side is an error.
func LoadPairs(path string) ([]Pair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pairs: %w", err)
	}
	defer file.Close()

	var pairs []Pair
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		src, tgt, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%s:%d: missing tab separator", path, lineNo)
		}
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if src == "" || tgt == "" {
			return nil, fmt.Errorf("%s:%d: empty source or target", path, lineNo)
		}
		pairs = append(pairs, Pair{Source: src, Target: tgt})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDataset)
	}
	return pairs, nil
}

// LoadCorpus reads train.txt, dev.txt and test.txt from dir.
func LoadCorpus(dir string) (*Corpus, error) {
	var c Corpus
	var err error
	if c.Train, err = LoadPairs(filepath.Join(dir, TrainFile)); err != nil {
		return nil, err
	}
	if c.Dev, err = LoadPairs(filepath.Join(dir, DevFile)); err != nil {
		return nil, err
	}
	if c.Test, err = LoadPairs(filepath.Join(dir, TestFile)); err != nil {
		return nil, err
	}
	return &c, nil
}

// PairBatch is a padded batch of encoded pairs.
//
// Src is [Size, SrcLen] and Tgt is [Size, TgtLen], both row-major and
// padded with PadID. Targets are wrapped in <sos> ... <eos>.
type PairBatch struct {
	Src        []int32
	Tgt        []int32
	SrcLengths []int
	Size       int
	SrcLen     int
	TgtLen     int
	Pairs      []Pair
}

// PairBatches encodes pairs with the two vocabularies and groups them into
// batches of at most size pairs, each padded to its own longest sequence.
func PairBatches(pairs []Pair, src, tgt *Vocab, size int, shuffle bool, rng *rand.Rand) []PairBatch {
	if size <= 0 {
		panic(fmt.Sprintf("dataset: batch size must be positive, got %d", size))
	}
	order := make([]int, len(pairs))
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var batches []PairBatch
	for start := 0; start < len(order); start += size {
		end := min(start+size, len(order))
		srcIDs := make([][]int32, 0, end-start)
		tgtIDs := make([][]int32, 0, end-start)
		b := PairBatch{Size: end - start}
		for _, idx := range order[start:end] {
			p := pairs[idx]
			s := src.Encode(p.Source)
			t := tgt.EncodeTarget(p.Target)
			srcIDs = append(srcIDs, s)
			tgtIDs = append(tgtIDs, t)
			b.SrcLengths = append(b.SrcLengths, len(s))
			b.SrcLen = max(b.SrcLen, len(s))
			b.TgtLen = max(b.TgtLen, len(t))
			b.Pairs = append(b.Pairs, p)
		}
		b.Src = pad(srcIDs, b.SrcLen)
		b.Tgt = pad(tgtIDs, b.TgtLen)
		batches = append(batches, b)
	}
	return batches
}

func pad(seqs [][]int32, width int) []int32 {
	out := make([]int32, len(seqs)*width)
	for i, s := range seqs {
		copy(out[i*width:], s)
		for j := len(s); j < width; j++ {
			out[i*width+j] = PadID
		}
	}
	return out
}
