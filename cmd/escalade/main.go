package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EscaladeProject/escalade/pkg/config"
	"github.com/EscaladeProject/escalade/pkg/escalator"
)

// Exit codes let scripts tell failure modes apart without parsing output.
const (
	exitOK        = 0
	exitExhausted = 2
	exitConfig    = 3
	exitInfra     = 4
)

var (
	configFile   string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "escalade",
		Short: "Cost-ordered instance tier escalation",
		Long: `Escalade runs a test pipeline on the cheapest instance tier that works.

Tiers are attempted in ascending cost order; any failure (no capacity,
provisioning error, failing step) escalates to the next tier, and the first
tier that runs the pipeline to completion ends the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := "escalade.yaml"
	if envCfg := os.Getenv("ESCALADE_CONFIG"); envCfg != "" {
		defaultConfig = envCfg
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", defaultConfig, "Config file (env: ESCALADE_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var cerr *config.Error
	if errors.As(err, &cerr) {
		return exitConfig
	}
	if errors.Is(err, escalator.ErrExhausted) {
		return exitExhausted
	}
	return exitInfra
}
