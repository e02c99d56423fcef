// Package main provides kvbench, a benchmark driver for kvmap.
//
// It measures the four bulk operations over a configurable capacity and
// batch size, and writes a JSON report. The report file is written
// atomically so an interrupted run never leaves a truncated report behind.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/pflag"

	"github.com/KentBeck/GPUSortedMap/pkg/kvmap"
)

// Config holds all benchmark configuration.
type Config struct {
	Capacity   int
	BatchSize  int
	Rounds     int
	Seed       int64
	Out        string
	ConfigPath string
}

// OpResult holds timing for one operation across all rounds.
type OpResult struct {
	Op        string  `json:"op"`
	Rounds    int     `json:"rounds"`
	BatchSize int     `json:"batch_size"`
	TotalNs   int64   `json:"total_ns"`
	MeanNs    int64   `json:"mean_ns"`
	OpsPerSec float64 `json:"ops_per_sec"`
}

// Report is the JSON document kvbench writes.
type Report struct {
	Capacity  int        `json:"capacity"`
	BatchSize int        `json:"batch_size"`
	Rounds    int        `json:"rounds"`
	Seed      int64      `json:"seed"`
	GoVersion string     `json:"go_version"`
	StartedAt string     `json:"started_at"`
	Results   []OpResult `json:"results"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := Config{}

	pflag.IntVarP(&cfg.Capacity, "capacity", "c", 1<<16, "map capacity in entries")
	pflag.IntVarP(&cfg.BatchSize, "batch-size", "b", 1024, "entries per bulk operation")
	pflag.IntVarP(&cfg.Rounds, "rounds", "r", 16, "rounds per operation")
	pflag.Int64Var(&cfg.Seed, "seed", 1, "PRNG seed for key generation")
	pflag.StringVarP(&cfg.Out, "out", "o", "kvbench.json", "report output path")
	pflag.StringVar(&cfg.ConfigPath, "config", "", "JSONC options file (overrides --capacity)")

	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: kvbench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Benchmarks kvmap bulk_put, bulk_get, bulk_delete and range over random batches.\n\n")
		fmt.Fprint(os.Stderr, "Flags:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if cfg.BatchSize < 1 || cfg.Rounds < 1 {
		return fmt.Errorf("batch-size and rounds must be >= 1")
	}

	opts := kvmap.Options{Capacity: cfg.Capacity}
	if cfg.ConfigPath != "" {
		loaded, err := kvmap.LoadOptionsFile(cfg.ConfigPath)
		if err != nil {
			return err
		}
		opts = loaded
		cfg.Capacity = opts.Capacity
	}
	if cfg.BatchSize > cfg.Capacity {
		return fmt.Errorf("batch-size %d exceeds capacity %d", cfg.BatchSize, cfg.Capacity)
	}

	m, err := kvmap.NewWithOptions(opts)
	if err != nil {
		return fmt.Errorf("creating map: %w", err)
	}
	defer m.Close()

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Key batches are disjoint per round so puts never exceed capacity:
	// round i owns keys [i*batch, (i+1)*batch), shuffled to defeat any
	// accidental reliance on pre-sorted input.
	maxRounds := cfg.Capacity / cfg.BatchSize
	rounds := cfg.Rounds
	if rounds > maxRounds {
		rounds = maxRounds
		fmt.Fprintf(os.Stderr, "note: clamping rounds to %d so puts stay within capacity\n", rounds)
	}
	batches := make([][]kvmap.KvEntry, rounds)
	for i := range batches {
		batch := make([]kvmap.KvEntry, cfg.BatchSize)
		for j := range batch {
			key := uint32(i*cfg.BatchSize + j)
			batch[j] = kvmap.KvEntry{Key: key, Value: rng.Uint32() >> 1}
		}
		rng.Shuffle(len(batch), func(a, b int) { batch[a], batch[b] = batch[b], batch[a] })
		batches[i] = batch
	}

	report := Report{
		Capacity:  cfg.Capacity,
		BatchSize: cfg.BatchSize,
		Rounds:    rounds,
		Seed:      cfg.Seed,
		GoVersion: runtime.Version(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}

	put, err := timeOp("bulk_put", cfg, rounds, func(i int) error {
		return m.BulkPut(batches[i])
	})
	if err != nil {
		return err
	}
	report.Results = append(report.Results, put)

	get, err := timeOp("bulk_get", cfg, rounds, func(i int) error {
		keys := make([]uint32, cfg.BatchSize)
		for j, e := range batches[i] {
			keys[j] = e.Key
		}
		_, getErr := m.BulkGet(keys)
		return getErr
	})
	if err != nil {
		return err
	}
	report.Results = append(report.Results, get)

	rng2 := rand.New(rand.NewSource(cfg.Seed + 1))
	scan, err := timeOp("range", cfg, rounds, func(i int) error {
		from := uint32(rng2.Intn(rounds * cfg.BatchSize))
		_, rangeErr := m.Range(from, from+uint32(cfg.BatchSize))
		return rangeErr
	})
	if err != nil {
		return err
	}
	report.Results = append(report.Results, scan)

	del, err := timeOp("bulk_delete", cfg, rounds, func(i int) error {
		keys := make([]uint32, cfg.BatchSize)
		for j, e := range batches[i] {
			keys[j] = e.Key
		}
		return m.BulkDelete(keys)
	})
	if err != nil {
		return err
	}
	report.Results = append(report.Results, del)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(cfg.Out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	for _, r := range report.Results {
		fmt.Printf("%-12s %8d entries/round  %10.0f entries/sec  (%d rounds, mean %s)\n",
			r.Op, r.BatchSize, r.OpsPerSec, r.Rounds, time.Duration(r.MeanNs))
	}
	fmt.Printf("report: %s\n", cfg.Out)
	return nil
}

func timeOp(name string, cfg Config, rounds int, fn func(round int) error) (OpResult, error) {
	start := time.Now()
	for i := 0; i < rounds; i++ {
		if err := fn(i); err != nil {
			return OpResult{}, fmt.Errorf("%s round %d: %w", name, i, err)
		}
	}
	total := time.Since(start)
	mean := total / time.Duration(rounds)
	return OpResult{
		Op:        name,
		Rounds:    rounds,
		BatchSize: cfg.BatchSize,
		TotalNs:   total.Nanoseconds(),
		MeanNs:    mean.Nanoseconds(),
		OpsPerSec: float64(rounds*cfg.BatchSize) / total.Seconds(),
	}, nil
}
