package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"psp-ffi/pkg/offsets"
	"psp-ffi/pkg/parser"
	"psp-ffi/pkg/types"
)

var filterSide string

var offsetsCmd = &cobra.Command{
	Use:     "offsets",
	Aliases: []string{"selectors", "ls"},
	Short:   "List the router functions with a known amount offset",
	Long: `List the Augustus function selectors whose amount argument position is known.

SELL routes patch the amount in, BUY routes patch the amount out. Offsets are
byte positions in the calldata, selector included.

Examples:
  psp-ffi offsets
  psp-ffi offsets --side buy
  psp-ffi offsets --json`,
	Args: cobra.NoArgs,
	RunE: runOffsets,
}

func init() {
	rootCmd.AddCommand(offsetsCmd)

	offsetsCmd.Flags().StringVar(&filterSide, "side", "", "Only list one side (sell or buy)")
}

type offsetRow struct {
	Side     types.Side `json:"side"`
	Selector string     `json:"selector"`
	Method   string     `json:"method"`
	Offset   uint64     `json:"offset"`
}

func runOffsets(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	sides := []types.Side{types.SideSell, types.SideBuy}
	if filterSide != "" {
		side := types.Side(strings.ToUpper(filterSide))
		if !side.Valid() {
			return errors.Wrapf(parser.ErrInvalidInput, "side must be sell or buy, got %q", filterSide)
		}
		sides = []types.Side{side}
	}

	var rows []offsetRow
	for _, side := range sides {
		for _, e := range offsets.Entries(side) {
			rows = append(rows, offsetRow{
				Side:     side,
				Selector: e.Selector.Hex(),
				Method:   e.Method,
				Offset:   e.Offset,
			})
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		jsonData, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(jsonData))
		return nil
	}

	displayOffsets(out, rows)
	return nil
}

func displayOffsets(out io.Writer, rows []offsetRow) {
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 70))
	color.New(color.FgGreen).Fprintln(out, "                      KNOWN AMOUNT OFFSETS")
	fmt.Fprintln(out, strings.Repeat("=", 70))

	var current types.Side
	for _, row := range rows {
		if row.Side != current {
			current = row.Side
			color.New(color.FgCyan).Fprintf(out, "\n%s\n", current)
			fmt.Fprintln(out, strings.Repeat("-", 70))
		}
		fmt.Fprintf(out, "  %s  %4d  %s\n",
			color.YellowString(row.Selector),
			row.Offset,
			color.HiBlackString(row.Method))
	}

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintf(out, "\nTotal: %d selectors\n\n", len(rows))
}
