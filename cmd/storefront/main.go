// Command storefront serves the cached product catalog and offers operator
// tools for inspecting and evicting cache entries.
package main

import (
	"os"

	"github.com/akashdube/PartsUL/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Parts store catalog with a distributed cache",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file ("+config.EnvPrefix+"* variables override it)")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}
	root.AddCommand(newServeCommand(load), newCacheCommand(load))
	return root
}
