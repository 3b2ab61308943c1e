package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nameserver/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file.

Without --path the file goes to $XDG_CONFIG_HOME/nameserver/config.yaml
(or ~/.config/nameserver/config.yaml). An existing file is kept unless
--force is given.`,
	Annotations: map[string]string{"skipConfig": "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path, _ := cmd.Flags().GetString("path")

		if path == "" {
			written, err := config.InitConfig(force)
			if err != nil {
				return err
			}
			path = written
		} else if err := config.InitConfigToPath(path, force); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.ToYAML(loadedConfig)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
	configInitCmd.Flags().String("path", "", "write to this path instead of the default location")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
