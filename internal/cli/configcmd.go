package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhengda-lu/devsweep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFrom(p)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		warnings := cfg.Validate()

		if len(warnings) == 0 {
			fmt.Fprintf(w, "Config OK (%s)\n", p)
			return nil
		}
		fmt.Fprintf(w, "Found %d warning(s) in %s:\n", len(warnings), p)
		for _, warn := range warnings {
			fmt.Fprintf(w, "  %s\n", warn.Message)
		}
		return fmt.Errorf("config has %d warning(s)", len(warnings))
	},
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
