package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"psp-ffi/config"
	"psp-ffi/pkg/cache"
	"psp-ffi/pkg/logging"
	"psp-ffi/pkg/offsets"
	"psp-ffi/pkg/parser"
	"psp-ffi/pkg/slippage"
)

// Exit codes of the FFI entry point
const (
	ExitFailure             = 1
	ExitInvalidInput        = 2
	ExitUnsupportedSelector = 3
)

var rootCmd = &cobra.Command{
	Use:   "psp-ffi " + parser.Usage,
	Short: "Prepare ParaSwap swap calldata for contract tests",
	Long: `psp-ffi fetches a ParaSwap route, applies slippage, builds the Augustus
transaction and prints one ABI encoded record to stdout:

  (address router, bytes calldata, uint256 srcAmount, uint256 destAmount, uint256 offset)

The record is hex encoded with a 0x prefix and no trailing newline, so it can be
consumed directly by an FFI cheatcode. Results are cached per argument list.

Examples:
  psp-ffi 1 0x6B175474E89094C44Da98b954EedeAC495271d0F 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 1000000000000000000000 0x000000000000000000000000000000000000dEaD SELL 1 true 18 6
  psp-ffi 137 <src> <dest> 500000 <user> BUY 2 false 6 18 51234567 false
  psp-ffi offsets --side sell
  psp-ffi decode 0x0000...`,
	Version:           "0.1.0",
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runPrepare,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(parser.ErrInvalidInput, err.Error())
	})
}

// setup loads the configuration and attaches the logger to the command context
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}

	logger, err := logging.New(cmd.ErrOrStderr(), level, cfg.LogPretty)
	if err != nil {
		return err
	}

	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

func runPrepare(cmd *cobra.Command, args []string) error {
	// stdout is reserved for the record, so usage goes to stderr
	if len(args) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		return errors.Wrap(parser.ErrInvalidInput, "no arguments")
	}

	req, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	orchestrator, cleanup, err := newOrchestrator(ctx, config.Get(), true)
	if err != nil {
		return err
	}
	defer cleanup()

	encoded, err := orchestrator.Prepare(ctx, req)
	if err != nil {
		return err
	}

	// stdout carries the record and nothing else
	_, err = cmd.OutOrStdout().Write(encoded)
	return err
}

// ExitCode maps an Execute error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, parser.ErrInvalidInput),
		errors.Is(err, slippage.ErrInvalidSlippage),
		errors.Is(err, cache.ErrInvalidKey):
		return ExitInvalidInput
	case errors.Is(err, offsets.ErrUnsupportedSelector):
		return ExitUnsupportedSelector
	default:
		return ExitFailure
	}
}

// PrintError writes the single error line of a failed run
func PrintError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(w, "%s %v\n", red.Sprint("Error:"), err)
}
