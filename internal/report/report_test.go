package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() *History {
	var h History
	h.Add(Epoch{Epoch: 1, Metrics: map[string]float64{TrainLoss: 1.2, ValidAcc: 0.5}})
	h.Add(Epoch{Epoch: 2, Metrics: map[string]float64{TrainLoss: 0.8, ValidAcc: 0.7}})
	h.Add(Epoch{Epoch: 3, Metrics: map[string]float64{TrainLoss: 0.6}})
	return &h
}

func TestHistory(t *testing.T) {
	h := sampleHistory()
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{TrainLoss, ValidAcc}, h.Names())

	s := h.Series(ValidAcc, "validation")
	assert.Equal(t, "validation", s.Name)
	assert.Equal(t, []float64{1, 2}, s.X)
	assert.Equal(t, []float64{0.5, 0.7}, s.Y)

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Epoch)

	_, ok = (&History{}).Last()
	assert.False(t, ok)
}

func TestHistory_CloneIsIndependent(t *testing.T) {
	h := sampleHistory()
	c := h.Clone()
	c.Epochs[0].Metrics[TrainLoss] = 99
	assert.Equal(t, 1.2, h.Epochs[0].Metrics[TrainLoss])
}

func TestHistory_JSON(t *testing.T) {
	data, err := json.Marshal(&History{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"epochs": []}`, string(data))

	data, err = json.Marshal(sampleHistory())
	require.NoError(t, err)
	var decoded History
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleHistory().Epochs, decoded.Epochs)
}

func TestTee(t *testing.T) {
	var a, b History
	report := Tee(a.Add, nil, b.Add)
	report(Epoch{Epoch: 1})
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}

func TestPlotCurves(t *testing.T) {
	h := sampleHistory()
	dir := t.TempDir()
	for _, name := range []string{"curves.svg", "curves.png", "curves.pdf"} {
		path := filepath.Join(dir, name)
		err := PlotCurves(path, "Epoch", "Accuracy", h.Series(ValidAcc, "validation"), h.Series(TrainLoss, "loss"))
		require.NoError(t, err, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestPlotCurves_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.svg")
	err := PlotCurves(path, "Epoch", "Loss", Series{Name: "empty"})
	assert.True(t, errors.Is(err, ErrNoData))

	err = PlotCurves(path, "Epoch", "Loss", Series{Name: "bad", X: []float64{1}, Y: nil})
	assert.Error(t, err)
}

func TestWriteCurves_SVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCurves(&buf, "svg", "Epoch", "Loss", sampleHistory().Series(TrainLoss, "train")))
	assert.Contains(t, buf.String(), "<svg")
}

func TestGrid_FlipsRows(t *testing.T) {
	g := Grid{Rows: 2, Cols: 3, Values: []float64{1, 2, 3, 4, 5, 6}}
	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 4.0, g.Z(0, 0))
	assert.Equal(t, 3.0, g.Z(2, 1))
}

func TestPlotFeatureMaps(t *testing.T) {
	maps := make([]Grid, 8)
	for i := range maps {
		values := make([]float64, 16)
		for j := range values {
			values[j] = float64(i * j)
		}
		maps[i] = Grid{Rows: 4, Cols: 4, Values: values}
	}
	// maps[0] is constant.
	path := filepath.Join(t.TempDir(), "maps.png")
	require.NoError(t, PlotFeatureMaps(path, maps, 4))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.True(t, errors.Is(PlotFeatureMaps(path, nil, 4), ErrNoData))
	assert.Error(t, PlotFeatureMaps(path, []Grid{{Rows: 2, Cols: 2, Values: []float64{1}}}, 1))
}
