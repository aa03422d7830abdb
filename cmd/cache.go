package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"psp-ffi/config"
	"psp-ffi/pkg/cache"
	"psp-ffi/pkg/parser"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the response cache",
	Long: `Inspect cached records. Entries are keyed by the exact argument list of an
invocation, so the same arguments must be passed here.

Examples:
  psp-ffi cache key 1 <src> <dest> 1000 <user> SELL 1 true 18 6
  psp-ffi cache show 1 <src> <dest> 1000 <user> SELL 1 true 18 6
  psp-ffi cache show <64-hex-key>`,
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key " + parser.Usage,
	Short: "Print the cache key for an argument list",
	Args:  cobra.ArbitraryArgs,
	RunE:  runCacheKey,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <key> | " + parser.Usage,
	Short: "Print the cached record for a key or an argument list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheShow,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheKeyCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}

func runCacheKey(cmd *cobra.Command, args []string) error {
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cache.Key(args))
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	key, err := resolveKey(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, cleanup, err := openStore(ctx, config.Get())
	if err != nil {
		return errors.Wrap(err, "failed to open cache")
	}
	defer cleanup()

	value, err := store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "No cache entry for %s\n", key)
		return err
	}
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(value)
	return err
}

// resolveKey accepts either a ready key or the argument list it is derived from
func resolveKey(args []string) (string, error) {
	if len(args) == 1 {
		if !cache.ValidKey(args[0]) {
			return "", errors.Wrapf(cache.ErrInvalidKey, "%q", args[0])
		}
		return args[0], nil
	}

	if _, err := parser.ParseArgs(args); err != nil {
		return "", err
	}
	return cache.Key(args), nil
}
