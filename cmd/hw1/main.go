// Command hw1 trains a perceptron, logistic regression or multi-layer
// perceptron on an image classification dataset and plots the validation
// and test accuracy of every epoch.
//
// Usage:
//
//	hw1 {perceptron|logistic_regression|mlp} [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/born-ml/coursework/internal/dashboard"
	"github.com/born-ml/coursework/internal/dataset"
	"github.com/born-ml/coursework/internal/linear"
	"github.com/born-ml/coursework/internal/report"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), "Usage: %s {%s|%s|%s} [flags]\n", os.Args[0],
			linear.PerceptronName, linear.LogisticRegressionName, linear.MLPName)
		fs.PrintDefaults()
	}
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	epochs := fs.Int("epochs", 20, "Number of epochs to train for")
	hiddenSize := fs.Int("hidden_size", 200, "Units per hidden layer (mlp only)")
	layers := fs.Int("layers", 1, "Number of hidden layers (mlp only)")
	lr := fs.Float64("learning_rate", linear.DefaultLearningRate, "Learning rate (logistic_regression and mlp)")
	dataPath := fs.String("data", "octmnist.npz", "Dataset: .npz archive or directory of IDX files")
	plotPath := fs.String("plot", "", "Accuracy plot file (default {model}-accuracy.pdf)")
	seed := fs.Uint64("seed", 42, "Random seed")
	serve := fs.String("serve", "", "Serve a live dashboard on this address (e.g. :8080)")
	fs.Usage = usage(fs)

	if len(os.Args) < 2 || os.Args[1] == "" || os.Args[1][0] == '-' {
		fs.Usage()
		os.Exit(2)
	}
	name := os.Args[1]
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	if *epochs <= 0 {
		log.Fatalf("epochs must be positive, got %d", *epochs)
	}
	if err := linear.CheckLearningRate(name, *lr); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rng := rand.New(rand.NewPCG(*seed, 0))
	data, err := dataset.LoadClassification(*dataPath, linear.UsesBias(name))
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	train := data.Train
	model, err := linear.New(name, train.NumClasses, train.NumFeatures(), *hiddenSize, *layers, rng)
	if err != nil {
		log.Fatalf("Failed to create model: %v", err)
	}

	onEpoch := report.EpochReport(func(e report.Epoch) {
		fmt.Printf("Valid acc: %.4f | Test acc: %.4f\n", e.Metrics[report.ValidAcc], e.Metrics[report.TestAcc])
	})
	var done <-chan error
	if *serve != "" {
		var dash *dashboard.Server
		dash, done = dashboard.Start(ctx, "hw1 "+name, *serve)
		onEpoch = report.Tee(onEpoch, dash.Publish)
		fmt.Printf("Dashboard on http://%s\n", *serve)
	}

	devX, testX := data.Dev.Dense(), data.Test.Dense()
	history := &report.History{}
	for i := 1; i <= *epochs; i++ {
		fmt.Printf("Training epoch %d\n", i)
		train.Shuffle(rng)
		model.TrainEpoch(train.Dense(), train.Y, *lr)

		e := report.Epoch{Epoch: i, Metrics: map[string]float64{
			report.ValidAcc: model.Evaluate(devX, data.Dev.Y),
			report.TestAcc:  model.Evaluate(testX, data.Test.Y),
		}}
		history.Add(e)
		onEpoch(e)
	}

	out := *plotPath
	if out == "" {
		out = name + "-accuracy.pdf"
	}
	err = report.PlotCurves(out, "Epoch", "Accuracy",
		history.Series(report.ValidAcc, "Valid"),
		history.Series(report.TestAcc, "Test"))
	if err != nil {
		log.Fatalf("Failed to plot: %v", err)
	}
	fmt.Printf("Saved %s\n", out)

	if done != nil {
		fmt.Println("Training complete; press Ctrl-C to stop the dashboard")
		if err := <-done; err != nil {
			log.Fatalf("Dashboard: %v", err)
		}
	}
}
