package cmd

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/provelabs/rvtrace/rvgo/executor"
)

var (
	RunELFFlag = &cli.PathFlag{
		Name:     "elf",
		Usage:    "Path to the RV32 ELF program to execute",
		Required: true,
	}
	RunStdinFlag = &cli.PathFlag{
		Name:  "stdin",
		Usage: "Path to a file provided to the guest as one input buffer",
	}
	RunInputStateFlag = &cli.PathFlag{
		Name:  "input-state",
		Usage: "Path to a saved execution state to resume from instead of starting fresh",
	}
	RunShardSizeFlag = &cli.Uint64Flag{
		Name:  "shard-size",
		Usage: "Cycles per shard before the shard rotates. Supplied by the proving pipeline.",
		Value: 1 << 21,
	}
	RunClockStepFlag = &cli.Uint64Flag{
		Name:  "clock-step",
		Usage: "Clock cycles per instruction",
		Value: 4,
	}
	RunTraceFlag = &cli.BoolFlag{
		Name:  "trace",
		Usage: "Emit full trace events (slower, more memory); final values are identical either way",
	}
	RunOutputFlag = &cli.PathFlag{
		Name:  "output",
		Usage: "Path to save the final execution state to (binary, same-build format)",
	}
	RunMaxCyclesFlag = &cli.Uint64Flag{
		Name:  "max-cycles",
		Usage: "Stop the run once global_clk passes this bound (0 = unbounded)",
	}
	RunPProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "Open a CPU profile for the duration of the run",
	}
)

var OutFilePerm = os.FileMode(0o644)

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}
	l := Logger(os.Stderr, slog.LevelInfo)

	exec, err := buildExecutor(ctx)
	if err != nil {
		return err
	}
	exec.Stdout = &LoggingWriter{Name: "guest std-out", Log: l}
	exec.Stderr = &LoggingWriter{Name: "guest std-err", Log: l}

	maxCycles := ctx.Uint64(RunMaxCyclesFlag.Name)
	start := time.Now()
	for exec.Status() == executor.StatusRunning {
		if err := exec.Step(); err != nil {
			return err
		}
		if maxCycles != 0 && exec.State.GlobalClk >= maxCycles {
			l.Warn("cycle bound reached, stopping", "global_clk", exec.State.GlobalClk)
			break
		}
	}
	elapsed := time.Since(start)

	pv := exec.State.PublicValuesStream
	l.Info("execution done",
		"exit", exec.ExitCode(),
		"pc", HexU32(exec.State.PC),
		"cycles", exec.State.GlobalClk,
		"shards", exec.State.CurrentShard,
		"elapsed", elapsed,
		"mhz", float64(exec.State.GlobalClk)/elapsed.Seconds()/1e6,
		"pages", exec.State.Memory.PageCount(),
		"mem", exec.State.Memory.Usage(),
	)
	if len(pv) > 0 {
		l.Info("public values", "len", len(pv), "digest", crypto.Keccak256Hash(pv), "data", hexutil.Bytes(pv))
	}

	if out := ctx.Path(RunOutputFlag.Name); out != "" {
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, OutFilePerm)
		if err != nil {
			return fmt.Errorf("failed to open state output file: %w", err)
		}
		defer f.Close()
		if err := exec.State.Save(f); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
		l.Info("state saved", "path", out)
	}
	return nil
}

func buildExecutor(ctx *cli.Context) (*executor.Executor, error) {
	elfPath := ctx.Path(RunELFFlag.Name)
	f, err := elf.Open(elfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open program ELF %q: %w", elfPath, err)
	}
	defer f.Close()
	program, err := executor.LoadELF(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load ELF: %w", err)
	}

	mode := executor.ModeSimple
	if ctx.Bool(RunTraceFlag.Name) {
		mode = executor.ModeTrace
	}
	cfg := executor.Config{
		ShardSize: uint32(ctx.Uint64(RunShardSizeFlag.Name)),
		ClockStep: uint32(ctx.Uint64(RunClockStepFlag.Name)),
		Mode:      mode,
	}

	var exec *executor.Executor
	if statePath := ctx.Path(RunInputStateFlag.Name); statePath != "" {
		sf, err := os.Open(statePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open input state %q: %w", statePath, err)
		}
		defer sf.Close()
		state := new(executor.ExecutionState)
		if err := state.Deserialize(bufio.NewReader(sf)); err != nil {
			return nil, fmt.Errorf("failed to load input state: %w", err)
		}
		exec, err = executor.ResumeExecutor(program, state, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		exec, err = executor.NewExecutor(program, cfg)
		if err != nil {
			return nil, err
		}
	}

	if stdin := ctx.Path(RunStdinFlag.Name); stdin != "" {
		buf, err := os.ReadFile(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin file: %w", err)
		}
		exec.WriteStdin(buf)
	}
	return exec, nil
}

var RunCommand = &cli.Command{
	Name:   "run",
	Usage:  "Execute an RV32 program and report its public outputs",
	Action: Run,
	Flags: []cli.Flag{
		RunELFFlag,
		RunStdinFlag,
		RunInputStateFlag,
		RunShardSizeFlag,
		RunClockStepFlag,
		RunTraceFlag,
		RunOutputFlag,
		RunMaxCyclesFlag,
		RunPProfCPUFlag,
	},
}
