package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EscaladeProject/escalade/pkg/config"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.Defaults()

			// The catalog and pipeline bridges carry their own checks
			// (duplicate cost ranks, env file resolution); exercise them
			// so validate catches everything run would.
			catalog, err := cfg.ToCatalog()
			if err != nil {
				return err
			}
			steps, err := cfg.ToSteps()
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d tier(s), %d step(s), provisioner %q\n",
				configFile, catalog.Len(), len(steps), cfg.Provisioner.Spec.Type)
			return nil
		},
	}
	return cmd
}
