package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func benchApp() *cli.App {
	return &cli.App{
		Name:     "rvtrace",
		Commands: []*cli.Command{BenchCommand},
	}
}

func TestBenchRejectsInvalidRunCount(t *testing.T) {
	err := benchApp().Run([]string{"rvtrace", "bench", "--elf", "nope.elf", "--runs", "0"})
	require.ErrorContains(t, err, "invalid run count")
}

func TestBenchMissingELF(t *testing.T) {
	err := benchApp().Run([]string{"rvtrace", "bench", "--elf", "nope.elf"})
	require.ErrorContains(t, err, "failed to open program ELF")
}
