// Command translit trains the character-level encoder/decoder on a
// tab-separated pair corpus, printing the training loss and validation
// error rate of every epoch and the final test error rate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/born-ml/coursework/internal/dashboard"
	"github.com/born-ml/coursework/internal/dataset"
	"github.com/born-ml/coursework/internal/report"
	"github.com/born-ml/coursework/internal/seq2seq"
)

func main() {
	def := seq2seq.DefaultConfig()
	dataDir := flag.String("data", "data", "Directory with train.txt, dev.txt and test.txt")
	epochs := flag.Int("epochs", def.Epochs, "Number of epochs to train for")
	batchSize := flag.Int("batch_size", def.BatchSize, "Size of training batch")
	hiddenSize := flag.Int("hidden_size", def.HiddenSize, "Hidden size (even)")
	dropout := flag.Float64("dropout", float64(def.Dropout), "Dropout probability")
	lr := flag.Float64("learning_rate", float64(def.LearningRate), "Adam learning rate")
	l2 := flag.Float64("l2_decay", float64(def.L2Decay), "L2 weight decay")
	useAttn := flag.Bool("use_attn", false, "Use attention over the encoder outputs")
	tokenizer := flag.String("tokenizer", "char", "Token splitter: char or tiktoken")
	maxLen := flag.Int("max_len", def.MaxLen, "Maximum decoded length")
	outDir := flag.String("out", ".", "Directory for plots")
	seed := flag.Uint64("seed", def.Seed, "Random seed")
	serve := flag.String("serve", "", "Serve a live dashboard on this address (e.g. :8080)")
	flag.Parse()

	cfg := seq2seq.Config{
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		HiddenSize:   *hiddenSize,
		Dropout:      float32(*dropout),
		LearningRate: float32(*lr),
		L2Decay:      float32(*l2),
		UseAttention: *useAttn,
		MaxLen:       *maxLen,
		Seed:         *seed,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	splitter, err := dataset.NewSplitter(*tokenizer)
	if err != nil {
		log.Fatalf("Failed to create tokenizer: %v", err)
	}
	corpus, err := dataset.LoadCorpus(*dataDir)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	fmt.Printf("Train: %d, Dev: %d, Test: %d pairs (%s tokens)\n",
		len(corpus.Train), len(corpus.Dev), len(corpus.Test), splitter.Name())

	onEpoch := report.EpochReport(func(e report.Epoch) {
		fmt.Printf("Epoch %d | Training loss: %.4f | Valid error rate: %.4f\n",
			e.Epoch, e.Metrics[report.TrainLoss], e.Metrics[report.ValidError])
	})
	var done <-chan error
	if *serve != "" {
		var dash *dashboard.Server
		dash, done = dashboard.Start(ctx, "translit", *serve)
		onEpoch = report.Tee(onEpoch, dash.Publish)
		fmt.Printf("Dashboard on http://%s\n", *serve)
	}

	run, err := seq2seq.Train(cfg, corpus, splitter, onEpoch)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Printf("Final Test error rate: %.4f\n", run.TestError)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", *outDir, err)
	}
	suffix := ""
	if cfg.UseAttention {
		suffix = "-attn"
	}
	plots := []struct {
		file, ylabel string
		series       report.Series
	}{
		{"translit-training-loss" + suffix + ".pdf", "Loss", run.History.Series(report.TrainLoss, "Train")},
		{"translit-validation-error" + suffix + ".pdf", "Error rate", run.History.Series(report.ValidError, "Valid")},
	}
	for _, p := range plots {
		path := filepath.Join(*outDir, p.file)
		if err := report.PlotCurves(path, "Epoch", p.ylabel, p.series); err != nil {
			log.Fatalf("Failed to plot: %v", err)
		}
		fmt.Printf("Saved %s\n", path)
	}

	if done != nil {
		fmt.Println("Training complete; press Ctrl-C to stop the dashboard")
		if err := <-done; err != nil {
			log.Fatalf("Dashboard: %v", err)
		}
	}
}
