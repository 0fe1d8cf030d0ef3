package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pgavlin/wasmir/cmd/wasmir/browse"
	"github.com/pgavlin/wasmir/cmd/wasmir/cli"
	"github.com/pgavlin/wasmir/cmd/wasmir/dump"
	"github.com/pgavlin/wasmir/cmd/wasmir/stats"
	"github.com/pgavlin/wasmir/load"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wast"
	"github.com/pgavlin/wasmir/wax"
)

var version = "<unknown>"

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.Encoding = "console"
	return config.Build()
}

func configureCLI() *cobra.Command {
	var cpuProfile string
	var memProfile string
	var verbose bool
	var options cli.Options

	rootCommand := &cobra.Command{
		Use:           "wasmir",
		Short:         "wasmir WebAssembly decompiler",
		Long:          "wasmir - reconstruct structured IR from WebAssembly modules",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			options.Logger = logger
			wasm.SetLogger(logger.Named("wasm"))
			wast.SetLogger(logger.Named("wast"))
			wax.SetLogger(logger.Named("wax"))
			load.SetLogger(logger.Named("load"))

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return err
				}
				pprof.StartCPUProfile(f)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cpuProfile != "" {
				pprof.StopCPUProfile()
			}

			if memProfile != "" {
				f, err := os.Create(memProfile)
				if err != nil {
					return err
				}
				runtime.GC()
				pprof.WriteHeapProfile(f)
			}

			options.Logger.Sync()
			return nil
		},
	}

	rootCommand.AddCommand(browse.Command(&options))
	rootCommand.AddCommand(dump.Command(&options))
	rootCommand.AddCommand(stats.Command(&options))

	flags := rootCommand.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&options.Validate, "validate", false, "validate binary modules before decoding them")
	flags.BoolVarP(&options.KeepGoing, "keep-going", "k", false, "skip functions that cannot be reconstructed")
	flags.BoolVar(&options.FoldConstants, "fold", false, "fold operators whose operands are constants")

	flags.StringVar(&cpuProfile, "cpu", "", "emit Go CPU profile data to this path")
	flags.StringVar(&memProfile, "mem", "", "emit Go memory profile data to this path")

	flags.MarkHidden("cpu")
	flags.MarkHidden("mem")

	return rootCommand
}

func main() {
	rootCommand := configureCLI()

	if err := rootCommand.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
