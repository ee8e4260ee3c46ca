package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootline/rootline/pkg/buildinfo"
)

// annotationNoConfig marks commands that run without loading the config
// file, so they still work when it is broken.
const annotationNoConfig = "rootline/no-config"

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Rootline browses family trees and reviews profile suggestions",
		Long: `Rootline is a client for a collaborative genealogy backend.

It renders bounded family-tree traversals, hops between the repeated
appearances of a person, previews suggested profile changes against the
current profile, and records moderator decisions. "rootline serve" exposes
the same operations over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoConfig] != "" {
				return nil
			}
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/rootline/config.toml)")
	flags.StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files with ROOTLINE_* settings")

	root.AddCommand(c.treeCommand())
	root.AddCommand(c.pictureCommand())
	root.AddCommand(c.suggestCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.loginCommand())
	root.AddCommand(c.logoutCommand())
	root.AddCommand(c.whoamiCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func noConfig() map[string]string {
	return map[string]string{annotationNoConfig: "true"}
}
