package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"psp-ffi/config"
	"psp-ffi/pkg/offsets"
	"psp-ffi/pkg/parser"
	"psp-ffi/pkg/route"
	"psp-ffi/pkg/slippage"
	"psp-ffi/pkg/types"
)

var quoteCmd = &cobra.Command{
	Use:   "quote " + parser.Usage,
	Short: "Show the priced route and slippage adjusted amounts",
	Long: `Run the full pipeline for the given arguments and print a readable summary
instead of the encoded record. The cache is neither read nor written.

Examples:
  psp-ffi quote 1 0x6B175474E89094C44Da98b954EedeAC495271d0F 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 1000000000000000000000 0x000000000000000000000000000000000000dEaD SELL 1 true 18 6
  psp-ffi quote 1 <src> <dest> 500000000 <user> BUY 2 false 6 18 --json`,
	Args: cobra.ArbitraryArgs,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

type quoteSummary struct {
	Side             types.Side `json:"side"`
	SrcToken         string     `json:"srcToken"`
	DestToken        string     `json:"destToken"`
	QuotedSrcAmount  string     `json:"quotedSrcAmount"`
	QuotedDestAmount string     `json:"quotedDestAmount"`
	SrcAmount        string     `json:"srcAmount"`
	DestAmount       string     `json:"destAmount"`
	SlippagePercent  int64      `json:"slippagePercent"`
	Router           string     `json:"router"`
	Selector         string     `json:"selector,omitempty"`
	Method           string     `json:"method,omitempty"`
	Offset           string     `json:"offset"`
	CalldataBytes    int        `json:"calldataBytes"`
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	orchestrator, cleanup, err := newOrchestrator(ctx, config.Get(), false)
	if err != nil {
		return err
	}
	defer cleanup()

	// Spinner goes to stderr so stdout stays parseable
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	if !jsonOutput {
		s.Suffix = " Fetching route..."
		s.Start()
	}

	res, err := orchestrator.Build(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	summary := summarize(req, res)

	out := cmd.OutOrStdout()
	if jsonOutput {
		jsonData, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(jsonData))
		return nil
	}

	displayQuote(out, req, summary)
	return nil
}

func summarize(req *types.SwapRequest, res *route.Result) *quoteSummary {
	summary := &quoteSummary{
		Side:             req.Side,
		SrcToken:         req.SrcToken.Hex(),
		DestToken:        req.DestToken.Hex(),
		QuotedSrcAmount:  res.Route.SrcAmount,
		QuotedDestAmount: res.Route.DestAmount,
		SrcAmount:        res.Record.SrcAmount.String(),
		DestAmount:       res.Record.DestAmount.String(),
		SlippagePercent:  req.Slippage,
		Router:           res.Record.Router.Hex(),
		Offset:           res.Record.Offset.String(),
		CalldataBytes:    len(res.Record.Data),
	}
	if sel, err := offsets.SelectorOf(res.Tx.Data); err == nil {
		summary.Selector = sel.Hex()
		if e, _, ok := offsets.Find(sel); ok {
			summary.Method = e.Method
		}
	}
	return summary
}

// formatUnits renders a base-unit amount with the token's decimals
func formatUnits(amount string, decimals uint8) string {
	v, err := slippage.ParseAmount(amount)
	if err != nil {
		return amount
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func displayQuote(out io.Writer, req *types.SwapRequest, q *quoteSummary) {
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	color.New(color.FgGreen).Fprintf(out, "                     %s QUOTE\n", q.Side)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\n  Router:            %s\n", color.CyanString(q.Router))
	fmt.Fprintf(out, "  From:              %s %s\n", formatUnits(q.QuotedSrcAmount, req.SrcDecimals), color.YellowString(q.SrcToken))
	fmt.Fprintf(out, "  To:                ~%s %s\n", formatUnits(q.QuotedDestAmount, req.DestDecimals), color.YellowString(q.DestToken))
	fmt.Fprintf(out, "  Slippage:          %d%%\n", q.SlippagePercent)

	if req.Side == types.SideSell {
		fmt.Fprintf(out, "  Minimum Received:  %s\n", formatUnits(q.DestAmount, req.DestDecimals))
	} else {
		fmt.Fprintf(out, "  Maximum Sold:      %s\n", formatUnits(q.SrcAmount, req.SrcDecimals))
	}

	if q.Method != "" {
		fmt.Fprintf(out, "  Function:          %s %s\n", q.Selector, q.Method)
	} else if q.Selector != "" {
		fmt.Fprintf(out, "  Function:          %s\n", q.Selector)
	}
	if q.Offset != "0" {
		fmt.Fprintf(out, "  Amount Offset:     %s\n", q.Offset)
	}
	fmt.Fprintf(out, "  Calldata:          %d bytes\n", q.CalldataBytes)

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60)+"\n")
}
