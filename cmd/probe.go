package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/rogd/internal/ctrl"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/laptop"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var dmiRoot string
	var supportTable string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print detected hardware",
		Long: `Detects the board, matches it against the LED support table and reports which ` +
			`controllers would start. Nothing is written to the hardware.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			machine, err := laptop.Detect(dmiRoot, supportTable)
			if err != nil {
				return fmt.Errorf("failed to detect laptop: %w", err)
			}
			printProbe(cmd.OutOrStdout(), machine, probeHardware())
			return nil
		},
	}

	cmd.Flags().StringVar(&dmiRoot, "dmi-root", laptop.DMIRoot, "DMI sysfs directory")
	cmd.Flags().StringVar(&supportTable, "support-table", laptop.SupportTablePath, "LED support table")
	return cmd
}

// probeResult maps a feature name to where it was found, or "" when absent.
type probeResult struct {
	name  string
	found string
}

func probeHardware() []probeResult {
	var results []probeResult

	hidraw, err := device.FindHidraw(laptop.KeyboardProductIDs...)
	if err != nil && !errors.Is(err, device.ErrNotFound) {
		hidraw = "error: " + err.Error()
	}
	results = append(results, probeResult{"keyboard LED", hidraw})

	animeFound := ""
	if anime, err := ctrl.OpenAnime(); err == nil {
		animeFound = "usb"
		anime.Close()
	}
	results = append(results, probeResult{"AniMe matrix", animeFound})

	fan := ctrl.DefaultFanPaths()
	fanPath := ""
	for _, p := range []string{fan.Policy, fan.BoostMode} {
		if device.Exists(p) {
			fanPath = p
			break
		}
	}
	results = append(results, probeResult{"fan control", fanPath})

	chargePath := ""
	if device.Exists(ctrl.ChargeLimitPath) {
		chargePath = ctrl.ChargeLimitPath
	}
	results = append(results, probeResult{"charge control", chargePath})

	bios := ctrl.DefaultBIOSPaths()
	for _, v := range []struct{ name, path string }{
		{"dedicated graphics", bios.GfxVar},
		{"POST sound", bios.PostSoundVar},
	} {
		found := ""
		if device.Exists(v.path) {
			found = v.path
		}
		results = append(results, probeResult{v.name, found})
	}
	return results
}

func printProbe(w io.Writer, machine laptop.Laptop, results []probeResult) {
	fmt.Fprintf(w, "Board:          %s\n", machine.DMI.BoardName)
	fmt.Fprintf(w, "Product family: %s\n", machine.DMI.ProductFamily)
	if machine.Matched {
		fmt.Fprintf(w, "Support entry:  %s\n", machine.LedData.ProdFamily)
	} else {
		fmt.Fprintln(w, "Support entry:  none, brightness only")
	}

	modes := machine.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	fmt.Fprintf(w, "LED modes:      %s\n", strings.Join(names, ", "))

	fmt.Fprintln(w)
	for _, r := range results {
		status := "not present"
		if r.found != "" {
			status = r.found
		}
		fmt.Fprintf(w, "%-20s %s\n", r.name+":", status)
	}
}
