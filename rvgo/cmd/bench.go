package cmd

import (
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

var (
	BenchRunsFlag = &cli.IntFlag{
		Name:  "runs",
		Usage: "Number of benchmark runs",
		Value: 5,
	}
	BenchExpectFlag = &cli.StringFlag{
		Name:  "expect",
		Usage: "Expected keccak256 digest (hex) of the public values stream; each run is checked against it",
	}
)

// Bench executes the program repeatedly and reports cycles, elapsed time and
// effective MHz per run plus the averages. Runs must be deterministic: the
// cycle count is asserted to be identical across runs.
func Bench(ctx *cli.Context) error {
	l := Logger(os.Stderr, slog.LevelInfo)
	runs := ctx.Int(BenchRunsFlag.Name)
	if runs <= 0 {
		return fmt.Errorf("invalid run count %d", runs)
	}
	var expect common.Hash
	checkDigest := ctx.IsSet(BenchExpectFlag.Name)
	if checkDigest {
		expect = common.HexToHash(ctx.String(BenchExpectFlag.Name))
	}

	var totalElapsed, totalMhz float64
	var cycles uint64
	for i := 0; i < runs; i++ {
		exec, err := buildExecutor(ctx)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := exec.Run(); err != nil {
			return err
		}
		elapsed := time.Since(start).Seconds()

		digest := crypto.Keccak256Hash(exec.State.PublicValuesStream)
		if checkDigest && digest != expect {
			return fmt.Errorf("run %d: public values digest %s does not match expected %s", i+1, digest, expect)
		}
		if cycles == 0 {
			cycles = exec.State.GlobalClk
		} else if cycles != exec.State.GlobalClk {
			return fmt.Errorf("run %d: non-deterministic cycle count: %d, previous runs %d", i+1, exec.State.GlobalClk, cycles)
		}

		mhz := float64(exec.State.GlobalClk) / elapsed / 1e6
		l.Info("run complete",
			"run", fmt.Sprintf("%d/%d", i+1, runs),
			"cycles", exec.State.GlobalClk,
			"elapsed", fmt.Sprintf("%.4fs", elapsed),
			"mhz", fmt.Sprintf("%.2f", mhz),
			"digest", digest,
		)
		totalElapsed += elapsed
		totalMhz += mhz
	}

	l.Info("benchmark results",
		"runs", runs,
		"cycles", cycles,
		"avg_elapsed", fmt.Sprintf("%.4fs", totalElapsed/float64(runs)),
		"avg_mhz", fmt.Sprintf("%.2f", totalMhz/float64(runs)),
	)
	return nil
}

var BenchCommand = &cli.Command{
	Name:   "bench",
	Usage:  "Benchmark repeated executions of an RV32 program",
	Action: Bench,
	Flags: []cli.Flag{
		RunELFFlag,
		RunStdinFlag,
		RunShardSizeFlag,
		RunClockStepFlag,
		BenchRunsFlag,
		BenchExpectFlag,
	},
}
