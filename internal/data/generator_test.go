package data

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testWindows(n int) []Window {
	windows := make([]Window, n)
	for i := range windows {
		windows[i] = Window{
			Key:   "k",
			Rows:  [][]float64{{float64(i)}},
			Label: float64(i % 2),
		}
	}
	return windows
}

// TestTrainingGeneratorCoversEveryWindowPerPass checks each pass is a permutation.
func newGenerator(t *testing.T, ctx context.Context, windows []Window, o Options) *TrainingGenerator {
	t.Helper()
	g, err := NewTrainingGenerator(ctx, windows, o)
	if err != nil {
		t.Fatalf("NewTrainingGenerator: %v", err)
	}
	return g
}

func TestNewTrainingGeneratorErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		windows []Window
		o       Options
		want    string
	}{
		{"zero batch size", testWindows(3), Options{BatchSize: 0, SeqLength: 1}, "batch size"},
		{"zero seq length", testWindows(3), Options{BatchSize: 2}, "sequence length"},
		{"no windows", nil, Options{BatchSize: 2, SeqLength: 1}, "no windows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrainingGenerator(ctx, tt.windows, tt.o)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTrainingGeneratorCoversEveryWindowPerPass(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, ctx, testWindows(6), Options{BatchSize: 4, SeqLength: 1, Seed: 3})
	defer g.Close()

	seen := map[float64]int{}
	for i := 0; i < 3; i++ { // 12 samples = 2 passes
		b, err := g.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if b.Len() != 4 {
			t.Fatalf("batch size = %d, want 4", b.Len())
		}
		for j, x := range b.X {
			seen[x[0][0]]++
			if b.Y[j] != float64(int(x[0][0])%2) {
				t.Errorf("label %v does not match window %v", b.Y[j], x[0][0])
			}
		}
	}

	for id := 0; id < 6; id++ {
		if seen[float64(id)] != 2 {
			t.Errorf("window %d seen %d times, want 2", id, seen[float64(id)])
		}
	}
}

func TestTrainingGeneratorDeterministic(t *testing.T) {
	ctx := context.Background()
	first := func() []float64 {
		g := newGenerator(t, ctx, testWindows(10), Options{BatchSize: 10, SeqLength: 1, Seed: 99})
		defer g.Close()
		b, err := g.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]float64, b.Len())
		for i, x := range b.X {
			ids[i] = x[0][0]
		}
		return ids
	}

	a, b := first(), first()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", a, b)
		}
	}
}

func TestTrainingGeneratorCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newGenerator(t, ctx, testWindows(3), Options{BatchSize: 2, SeqLength: 1})
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("generator did not stop after cancel")
		default:
		}
		if _, err := g.Next(ctx); err != nil {
			return
		}
	}
}

func TestInferenceGenerator(t *testing.T) {
	ctx := context.Background()
	g := NewInferenceGenerator(testWindows(5), 2)

	var sizes []int
	var order []float64
	for {
		b, err := g.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, b.Len())
		for _, x := range b.X {
			order = append(order, x[0][0])
		}
	}

	if len(sizes) != 3 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
	for i, v := range order {
		if v != float64(i) {
			t.Errorf("order = %v, want file order", order)
			break
		}
	}
}

// TestPrepareFromSynthesizedFile runs both generators over a synthesized file.
func TestPrepareFromSynthesizedFile(t *testing.T) {
	opts := DefaultSynthOptions()
	opts.Cards = 20
	opts.Features = 16

	var buf bytes.Buffer
	rows, err := Synthesize(&buf, opts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	path := filepath.Join(t.TempDir(), "train.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadCSV(path, 16)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if tbl.Len() != rows {
		t.Errorf("loaded %d rows, synthesized %d", tbl.Len(), rows)
	}

	ctx := context.Background()
	train, err := PrepareTrainingData(ctx, Options{Path: path, BatchSize: 8, SeqLength: 5, Features: 16})
	if err != nil {
		t.Fatalf("PrepareTrainingData: %v", err)
	}
	defer train.Close()
	b, err := train.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.X[0]) != 5 || len(b.X[0][0]) != 16 {
		t.Errorf("sequence shape = %dx%d, want 5x16", len(b.X[0]), len(b.X[0][0]))
	}

	infer, err := PrepareInferenceData(Options{Path: path, BatchSize: 1000, SeqLength: 5, Features: 16})
	if err != nil {
		t.Fatalf("PrepareInferenceData: %v", err)
	}
	if infer.Windows() != len(tbl.Windows(5)) {
		t.Errorf("inference windows = %d, want %d", infer.Windows(), len(tbl.Windows(5)))
	}

	if _, err := PrepareInferenceData(Options{Path: path, BatchSize: 10, SeqLength: 500, Features: 16}); err == nil {
		t.Error("expected error when no card is long enough")
	}
	if _, err := PrepareInferenceData(Options{Path: path, BatchSize: 0, SeqLength: 5}); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestSynthesizeLabelsBothClasses(t *testing.T) {
	opts := DefaultSynthOptions()
	opts.Cards = 50

	var buf bytes.Buffer
	if _, err := Synthesize(&buf, opts); err != nil {
		t.Fatal(err)
	}
	tbl, err := ReadCSV(&buf, opts.Features)
	if err != nil {
		t.Fatal(err)
	}

	var fraud int
	for _, l := range tbl.Labels {
		if l == 1 {
			fraud++
		}
	}
	if fraud == 0 || fraud == tbl.Len() {
		t.Errorf("fraud rows = %d of %d, want a mix", fraud, tbl.Len())
	}

	if _, err := Synthesize(&buf, SynthOptions{Cards: 1, MinTx: 1, MaxTx: 1, Features: 10}); err == nil {
		t.Error("expected error for too few features")
	}
}
