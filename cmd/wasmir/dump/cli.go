package dump

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/pgavlin/wasmir/cmd/wasmir/cli"
	"github.com/pgavlin/wasmir/ir"
	"github.com/spf13/cobra"
)

// Dump writes the IR of the functions selected by filter, or of the whole module if filter is empty.
func Dump(w io.Writer, m *ir.Module, filter string, style ir.Style) error {
	p := ir.Printer{Style: style, Module: m}
	if filter == "" {
		return p.Fprint(w, m)
	}

	fns, err := cli.SelectFunctions(m, filter)
	if err != nil {
		return err
	}
	for i, f := range fns {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := p.Fprint(w, f); err != nil {
			return err
		}
	}
	return nil
}

func Command(options *cli.Options) *cobra.Command {
	var color string
	var function string

	command := &cobra.Command{
		Use:   "dump [path to module]",
		Short: "Dump reconstructed IR",
		Long:  "Dump a binary or text WebAssembly module as structured IR",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}

			style, err := cli.NewStyle(color, os.Stdout)
			if err != nil {
				return err
			}

			m, err := options.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()

			return Dump(w, m, function, style)
		},
	}

	command.PersistentFlags().StringVar(&color, "color", "auto", "colorize output (auto, always, never)")
	command.PersistentFlags().StringVarP(&function, "function", "f", "", "dump only the function with this index, name, or export name")

	return command
}
