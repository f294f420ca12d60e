// Command cnn trains the convolutional classifier, prints the training
// loss and validation accuracy of every epoch and writes the loss and
// accuracy curves plus the first convolution's feature maps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/born-ml/coursework/internal/cnn"
	"github.com/born-ml/coursework/internal/dashboard"
	"github.com/born-ml/coursework/internal/dataset"
	"github.com/born-ml/coursework/internal/report"
)

// featureMapImage is the training example whose activations are plotted.
const featureMapImage = 4

func main() {
	def := cnn.DefaultConfig()
	epochs := flag.Int("epochs", def.Epochs, "Number of epochs to train for")
	batchSize := flag.Int("batch_size", def.BatchSize, "Size of training batch")
	lr := flag.Float64("learning_rate", float64(def.LearningRate), "Learning rate for parameter updates")
	l2 := flag.Float64("l2_decay", float64(def.L2Decay), "L2 weight decay")
	dropout := flag.Float64("dropout", float64(def.Dropout), "Dropout probability after the first fully connected layer")
	optimizer := flag.String("optimizer", def.Optimizer, "Optimizer: sgd or adam")
	dataPath := flag.String("data", "octmnist.npz", "Dataset: .npz archive or directory of IDX files")
	outDir := flag.String("out", ".", "Directory for plots")
	seed := flag.Uint64("seed", def.Seed, "Random seed")
	serve := flag.String("serve", "", "Serve a live dashboard on this address (e.g. :8080)")
	flag.Parse()

	cfg := cnn.Config{
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: float32(*lr),
		L2Decay:      float32(*l2),
		Dropout:      float32(*dropout),
		Optimizer:    *optimizer,
		Seed:         *seed,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := dataset.LoadClassification(*dataPath, false)
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	fmt.Printf("Train: %d, Dev: %d, Test: %d examples, %d classes\n",
		data.Train.Len(), data.Dev.Len(), data.Test.Len(), data.Train.NumClasses)

	onEpoch := report.EpochReport(func(e report.Epoch) {
		fmt.Printf("Training epoch %d\n", e.Epoch)
		fmt.Printf("Training loss: %.4f\n", e.Metrics[report.TrainLoss])
		fmt.Printf("Valid acc: %.4f\n", e.Metrics[report.ValidAcc])
	})
	var done <-chan error
	if *serve != "" {
		var dash *dashboard.Server
		dash, done = dashboard.Start(ctx, "cnn "+cfg.Name(), *serve)
		onEpoch = report.Tee(onEpoch, dash.Publish)
		fmt.Printf("Dashboard on http://%s\n", *serve)
	}

	// Train shuffles batch order only, so the example index is stable.
	image := data.Train.X[min(featureMapImage, data.Train.Len()-1)]

	run, err := cnn.Train(cfg, data, onEpoch)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Printf("Final Test acc: %.4f\n", run.TestAcc)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", *outDir, err)
	}
	plots := []struct {
		file, ylabel string
		series       report.Series
	}{
		{"CNN-training-loss-" + cfg.Name() + ".pdf", "Loss", run.History.Series(report.TrainLoss, "Train")},
		{"CNN-validation-accuracy-" + cfg.Name() + ".pdf", "Accuracy", run.History.Series(report.ValidAcc, "Valid")},
	}
	for _, p := range plots {
		path := filepath.Join(*outDir, p.file)
		if err := report.PlotCurves(path, "Epoch", p.ylabel, p.series); err != nil {
			log.Fatalf("Failed to plot: %v", err)
		}
		fmt.Printf("Saved %s\n", path)
	}

	pixels := make([]float32, len(image))
	for i, v := range image {
		pixels[i] = float32(v)
	}
	original := report.Grid{Rows: cnn.ImageSize, Cols: cnn.ImageSize, Values: image}
	if err := report.PlotFeatureMaps(filepath.Join(*outDir, "original_image.pdf"), []report.Grid{original}, 1); err != nil {
		log.Fatalf("Failed to plot image: %v", err)
	}
	maps := run.Trainer.FeatureMaps(pixels)
	if err := report.PlotFeatureMaps(filepath.Join(*outDir, "activation_maps.pdf"), maps, 4); err != nil {
		log.Fatalf("Failed to plot feature maps: %v", err)
	}
	fmt.Printf("Saved feature maps of training image %d\n", featureMapImage)

	if done != nil {
		fmt.Println("Training complete; press Ctrl-C to stop the dashboard")
		if err := <-done; err != nil {
			log.Fatalf("Dashboard: %v", err)
		}
	}
}
