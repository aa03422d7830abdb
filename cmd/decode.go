package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"psp-ffi/pkg/offsets"
	"psp-ffi/pkg/parser"
	"psp-ffi/pkg/route"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex-record>",
	Short: "Decode a record printed by psp-ffi",
	Long: `Decode an encoded (router, calldata, srcAmount, destAmount, offset) record
and show which router function the calldata calls.

Examples:
  psp-ffi decode 0x0000000000000000000000000000000000000000000000000000000000000020...
  psp-ffi decode "$(psp-ffi 1 <src> <dest> 1000 <user> SELL 1 true 18 6)" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

type decodedRecord struct {
	Router     string `json:"router"`
	Selector   string `json:"selector,omitempty"`
	Method     string `json:"method,omitempty"`
	Side       string `json:"side,omitempty"`
	SrcAmount  string `json:"srcAmount"`
	DestAmount string `json:"destAmount"`
	Offset     string `json:"offset"`
	Calldata   string `json:"calldata"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rec, err := route.Decode(strings.TrimSpace(args[0]))
	if err != nil {
		return errors.Wrap(parser.ErrInvalidInput, err.Error())
	}

	out := decodedRecord{
		Router:     rec.Router.Hex(),
		SrcAmount:  rec.SrcAmount.String(),
		DestAmount: rec.DestAmount.String(),
		Offset:     rec.Offset.String(),
		Calldata:   hexutil.Encode(rec.Data),
	}
	if sel, err := offsets.SelectorOf(rec.Data); err == nil {
		out.Selector = sel.Hex()
		if e, side, ok := offsets.Find(sel); ok {
			out.Method = e.Method
			out.Side = string(side)
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(jsonData))
		return nil
	}

	displayRecord(w, &out, len(rec.Data))
	return nil
}

func displayRecord(w io.Writer, rec *decodedRecord, dataLen int) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	color.New(color.FgGreen).Fprintln(w, "                     DECODED RECORD")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\n  Router:       %s\n", color.CyanString(rec.Router))
	fmt.Fprintf(w, "  Src Amount:   %s\n", rec.SrcAmount)
	fmt.Fprintf(w, "  Dest Amount:  %s\n", rec.DestAmount)
	if rec.Offset == "0" {
		fmt.Fprintf(w, "  Offset:       %s\n", color.HiBlackString("none"))
	} else {
		fmt.Fprintf(w, "  Offset:       %s\n", rec.Offset)
	}
	fmt.Fprintf(w, "  Calldata:     %d bytes\n", dataLen)

	switch {
	case rec.Method != "":
		fmt.Fprintf(w, "  Function:     %s %s (%s)\n", color.YellowString(rec.Selector), rec.Method, rec.Side)
	case rec.Selector != "":
		fmt.Fprintf(w, "  Function:     %s %s\n", color.YellowString(rec.Selector), color.RedString("unknown"))
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60)+"\n")
}
