package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rootline/rootline/pkg/config"
)

// configCommand creates the config command with subcommands.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the config file",
	}

	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configPathCommand())
	cmd.AddCommand(c.configInitCommand())

	return cmd
}

func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var b strings.Builder
			if err := c.Config.Write(&b); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			if c.Config.API.Token != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n# api.token = %s (from %s)\n", config.Redacted(c.Config.API.Token), config.EnvToken)
			}
			return nil
		},
	}
}

func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Annotations: noConfig(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPathOrDefault()
			if path == "" {
				return fmt.Errorf("cannot determine config path")
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (c *CLI) configInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the default settings",
		Annotations: noConfig(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPathOrDefault()
			if path == "" {
				return fmt.Errorf("cannot determine config path")
			}
			if _, err := os.Stat(path); err == nil && !force {
				printWarning("%s already exists", path)
				printDetail("Use --force to overwrite it")
				return nil
			}
			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			printSuccess("Wrote default config")
			printFile(path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
