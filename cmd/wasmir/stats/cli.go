package stats

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/pgavlin/wasmir/cmd/wasmir/cli"
	"github.com/pgavlin/wasmir/ir"
	"github.com/spf13/cobra"
)

// Row holds the statistics for a single function.
type Row struct {
	Function     string `csv:"function"`
	Funcidx      uint32 `csv:"funcidx"`
	Exports      string `csv:"exports"`
	Params       int    `csv:"params"`
	Results      int    `csv:"results"`
	LocalCount   int    `csv:"local count"`
	LocalsUsed   uint   `csv:"locals used"`
	LocalsStored uint   `csv:"locals stored"`
	GlobalsUsed  uint   `csv:"globals used"`
	Temps        int    `csv:"temps"`
	Statements   int    `csv:"statements"`
	Expressions  int    `csv:"expressions"`
	MaxNesting   int    `csv:"max nesting"`
	Block        int    `csv:"block"`
	Loop         int    `csv:"loop"`
	If           int    `csv:"if"`
	Branch       int    `csv:"branch"`
	Call         int    `csv:"call"`
	CallIndirect int    `csv:"call_indirect"`
	Load         int    `csv:"load"`
	Store        int    `csv:"store"`
	Invalid      int    `csv:"invalid"`
	Diagnostics  int    `csv:"diagnostics"`
}

// Collect computes the statistics for a defined function. Imported functions have no body and yield
// false.
func Collect(f *ir.Function) (Row, bool) {
	if f.Body == nil {
		return Row{}, false
	}

	refs := ir.CollectRefs(f.Body)
	r := Row{
		Function:     ir.FunctionName(f.Index, f.Name),
		Funcidx:      f.Index,
		Exports:      strings.Join(f.Exports, " "),
		Params:       len(f.Signature.Params),
		Results:      len(f.Signature.Results()),
		LocalCount:   len(f.Locals) - len(f.Signature.Params),
		LocalsUsed:   refs.Locals.Count(),
		LocalsStored: refs.LocalStores.Count(),
		GlobalsUsed:  refs.Globals.Count(),
		Temps:        len(refs.Temps),
		MaxNesting:   nesting(f.Body),
		Diagnostics:  len(f.Diagnostics),
	}

	ir.Walk(f.Body, func(n ir.Node) bool {
		switch n.(type) {
		case *ir.Sequence:
			return true
		case ir.Stm:
			r.Statements++
		case ir.Expr:
			r.Expressions++
		}

		switch n.(type) {
		case *ir.Block:
			r.Block++
		case *ir.Loop:
			r.Loop++
		case *ir.If, *ir.IfElse:
			r.If++
		case *ir.Branch, *ir.BranchIf, *ir.BranchTable:
			r.Branch++
		case *ir.Call:
			r.Call++
		case *ir.CallIndirect:
			r.CallIndirect++
		case *ir.MemoryRead:
			r.Load++
		case *ir.MemoryWrite:
			r.Store++
		case *ir.InvalidExpr:
			r.Invalid++
		}
		return true
	})
	return r, true
}

// nesting returns the maximum depth of structured constructs in s.
func nesting(s *ir.Sequence) int {
	max := 0
	for _, stm := range s.Stms {
		var d int
		switch stm := stm.(type) {
		case *ir.Block:
			d = 1 + nesting(stm.Body)
		case *ir.Loop:
			d = 1 + nesting(stm.Body)
		case *ir.If:
			d = 1 + nesting(stm.Then)
		case *ir.IfElse:
			d = 1 + nesting(stm.Then)
			if e := 1 + nesting(stm.Else); e > d {
				d = e
			}
		case *ir.Sequence:
			d = nesting(stm)
		}
		if d > max {
			max = d
		}
	}
	return max
}

// WriteStats writes one CSV row per defined function.
func WriteStats(w io.Writer, m *ir.Module) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	encoder := csvutil.NewEncoder(csvWriter)
	if err := encoder.EncodeHeader(Row{}); err != nil {
		return err
	}
	for _, f := range m.Functions {
		if r, ok := Collect(f); ok {
			if err := encoder.Encode(r); err != nil {
				return err
			}
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func Command(options *cli.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [path to module]",
		Short: "Dump function statistics",
		Long:  "Dump statistics about the reconstructed IR of each function in CSV format",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}
			m, err := options.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return WriteStats(os.Stdout, m)
		},
	}
}
