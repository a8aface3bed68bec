package cmd

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/rogd/internal/laptop"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/spf13/cobra"
)

// ledEntry is a support table entry written back in table syntax, modes by name.
type ledEntry struct {
	ProdFamily string   `toml:"prod_family"`
	BoardNames []string `toml:"board_names"`
	Standard   []string `toml:"standard"`
	Multizone  bool     `toml:"multizone"`
	PerKey     bool     `toml:"per_key"`
}

// CreateLEDModesCmd creates the led-modes command.
func CreateLEDModesCmd() *cobra.Command {
	var dmiRoot string
	var supportTable string
	var all bool

	cmd := &cobra.Command{
		Use:   "led-modes",
		Short: "Print the LED support table entry for this board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			var entries []laptop.LedData
			if all {
				table, err := laptop.LoadSupportTable(supportTable)
				if err != nil {
					return err
				}
				entries = table.LedData
			} else {
				machine, err := laptop.Detect(dmiRoot, supportTable)
				if err != nil {
					return fmt.Errorf("failed to detect laptop: %w", err)
				}
				if !machine.Matched {
					fmt.Fprintf(cmd.ErrOrStderr(), "No entry for board %s, brightness only\n", machine.DMI.BoardName)
					return nil
				}
				entries = []laptop.LedData{machine.LedData}
			}
			return writeLEDEntries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&dmiRoot, "dmi-root", laptop.DMIRoot, "DMI sysfs directory")
	cmd.Flags().StringVar(&supportTable, "support-table", laptop.SupportTablePath, "LED support table")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Print every entry of the table")
	return cmd
}

func writeLEDEntries(w io.Writer, entries []laptop.LedData) error {
	out := struct {
		LedData []ledEntry `toml:"led_data"`
	}{}
	for _, d := range entries {
		e := ledEntry{
			ProdFamily: d.ProdFamily,
			BoardNames: d.BoardNames,
			Standard:   make([]string, len(d.Standard)),
			Multizone:  d.Multizone,
			PerKey:     d.PerKey,
		}
		for i, m := range d.Standard {
			e.Standard[i] = m.String()
		}
		out.LedData = append(out.LedData, e)
	}
	return toml.NewEncoder(w).Encode(out)
}
