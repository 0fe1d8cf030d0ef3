package browse

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pgavlin/wasmir/cmd/wasmir/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func Command(options *cli.Options) *cobra.Command {
	var color string

	command := &cobra.Command{
		Use:   "browse [path to module]",
		Short: "Browse reconstructed IR",
		Long:  "Interactively browse the reconstructed IR of a module's functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("browse requires a terminal")
			}

			style, err := cli.NewStyle(color, os.Stdout)
			if err != nil {
				return err
			}

			m, err := options.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			width, height, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				width, height = 80, 24
			}

			_, err = tea.NewProgram(New(args[0], m, style, width, height), tea.WithAltScreen()).Run()
			return err
		},
	}

	command.PersistentFlags().StringVar(&color, "color", "auto", "colorize IR (auto, always, never)")

	return command
}
