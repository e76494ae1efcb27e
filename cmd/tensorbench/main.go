// Command tensorbench exercises the tensor kernel core end to end
// against synthetic data: a small matmul, an RMS-norm pass, and one
// step of multi-query attention. Grounded in the teacher's yent.go
// entrypoint (flag-driven orchestration of a model forward pass),
// rewired onto cobra/pflag/zerolog the way ajroetker-go-highway's
// dependency set implies a CLI-fronted kernel library should look.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lattice-run/tensorkernel/internal/loader"
	"github.com/lattice-run/tensorkernel/tensor"
)

var (
	rows    int
	cols    int
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "tensorbench",
		Short: "Exercise the tensor kernel core against synthetic data",
		RunE:  run,
	}
	root.Flags().IntVar(&rows, "rows", 64, "weight matrix output rows")
	root.Flags().IntVar(&cols, "cols", 128, "weight matrix input columns")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	dev := tensor.NewDevice()
	log.Info().Int("workers", dev.Workers).Bool("wide_simd", dev.HasWideSIMD()).Msg("device ready")

	if cols%32 != 0 {
		return fmt.Errorf("cols must be a multiple of 32 for quantized paths, got %d", cols)
	}

	w := make([]float32, rows*cols)
	for i := range w {
		w[i] = float32(i%17) - 8
	}
	x := make([]float32, cols)
	for i := range x {
		x[i] = float32(i%5) - 2
	}

	wBuf := tensor.NewOwnedF32(w)
	wq, err := wBuf.Quantize(tensor.Q4_0)
	if err != nil {
		return fmt.Errorf("quantize weight: %w", err)
	}
	xBuf := tensor.NewOwnedF32(x)
	xq, err := xBuf.Quantize(tensor.Q8_0)
	if err != nil {
		return fmt.Errorf("quantize activation: %w", err)
	}

	// Spill the quantized weight to a file and mmap it back in, the way
	// a real checkpoint load never copies weight bytes into the Go
	// heap: Buffer.FromRawBytes reinterprets the mapping directly.
	weightFile, err := os.CreateTemp("", "tensorbench-weights-*.bin")
	if err != nil {
		return fmt.Errorf("create weight file: %w", err)
	}
	weightPath := weightFile.Name()
	defer os.Remove(weightPath)
	if _, err := weightFile.Write(wq.RawBytes()); err != nil {
		weightFile.Close()
		return fmt.Errorf("write weight file: %w", err)
	}
	if err := weightFile.Close(); err != nil {
		return fmt.Errorf("close weight file: %w", err)
	}

	lf, err := loader.Open(weightPath, []loader.TensorEntry{
		{Name: "w", Offset: 0, Length: int64(len(wq.RawBytes())), Dtype: tensor.Q4_0, Shape: []int{rows, cols}},
	}, dev)
	if err != nil {
		return fmt.Errorf("open weight file: %w", err)
	}
	defer lf.Close()
	wqMapped, _, err := lf.View("w")
	if err != nil {
		return fmt.Errorf("view weight tensor: %w", err)
	}
	log.Debug().Str("path", weightPath).Msg("weight tensor mmap'd back from disk")

	y := tensor.NewOwnedF32(make([]float32, rows))
	start := time.Now()
	if err := tensor.MatMul2D(dev, wqMapped, []int{rows, cols}, xq, []int{cols}, y); err != nil {
		return fmt.Errorf("matmul: %w", err)
	}
	log.Info().Dur("elapsed", time.Since(start)).Int("rows", rows).Int("cols", cols).Msg("Q4_0 x Q8_0 matmul complete")

	norm := append([]float32(nil), y.AsF32()...)
	weight := make([]float32, len(norm))
	for i := range weight {
		weight[i] = 1.0
	}
	if err := tensor.RMSNorm(dev, norm, weight, 1e-5); err != nil {
		return fmt.Errorf("rms_norm: %w", err)
	}
	log.Info().Msg("rms_norm complete")

	headSize := 8
	nHeads := rows / headSize
	if nHeads == 0 {
		nHeads = 1
		headSize = rows
	}
	q := append([]float32(nil), norm[:nHeads*headSize]...)
	kCache := [][]float32{append([]float32(nil), q...)}
	vCache := [][]float32{append([]float32(nil), q...)}
	out := make([]float32, nHeads*headSize)
	if err := tensor.MultiQueryAttention(dev, out, q, kCache, vCache, nHeads, nHeads, headSize, 0); err != nil {
		return fmt.Errorf("attention: %w", err)
	}
	log.Info().Int("heads", nHeads).Int("head_size", headSize).Msg("multi_query_attention complete")

	fmt.Printf("output[0:4] = %v\n", out[:min(4, len(out))])
	return nil
}
