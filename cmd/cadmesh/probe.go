package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which STEP converter backends are usable",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	caps, err := probeBackends(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "STEP backends")
	fmt.Fprintln(out, "=============")
	for i, name := range caps.BackendNames() {
		fmt.Fprintf(out, "  %d. %-13s available\n", i+1, name)
	}
	names := make([]string, 0, len(caps.Unavailable))
	for name := range caps.Unavailable {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  -  %-13s unavailable: %v\n", name, caps.Unavailable[name])
	}
	if !caps.HasStep() {
		if caps.Placeholder {
			fmt.Fprintln(out, "\nSTEP input will be replaced by placeholder geometry.")
		} else {
			fmt.Fprintln(out, "\nSTEP input will be rejected.")
		}
	}
	return nil
}
