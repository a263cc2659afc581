package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Long:  "Prints the configuration after merging defaults, the optional config.yaml, and TILESCOUT_* environment variables. Secrets are redacted.",
	RunE: func(_ *cobra.Command, _ []string) error {
		show := *cfg
		if show.Detect.APIKey != "" {
			show.Detect.APIKey = "<redacted>"
		}

		data, err := yaml.Marshal(&show)
		if err != nil {
			return eris.Wrap(err, "config show")
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
