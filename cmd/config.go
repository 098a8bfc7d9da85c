/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/allbin/serial-bridge/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration the bridge would run with, after merging the
config file, SERIAL_BRIDGE_* environment variables and defaults.

The output is valid YAML and can be used as a starting config file:
  serial-bridge config --defaults > serial-bridge.yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defaults, _ := cmd.Flags().GetBool("defaults")

		cfg := config.Default()
		if !defaults {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		_ = enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("defaults", false, "Print built-in defaults, ignoring files and environment")
}
