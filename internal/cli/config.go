package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tansive/sensorthings/internal/config"
)

func newConfigCmd() *cobra.Command {
	var (
		apiKey   string
		timeout  string
		insecure bool
	)
	cmd := &cobra.Command{
		Use:   "config --url URL [--api-key KEY] [--timeout DURATION]",
		Short: "Write the backend connection settings to the configuration file",
		Long: `Create or update the configuration file with the backend connection settings.
Settings already in the file are kept unless a flag replaces them. The file is
written to --config, or to the default location when --config is not given.

Examples:
  stabackend config --url http://localhost:8080/FROST-Server/v1.1 --api-key secret
  stabackend config --timeout 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := opts.configFile
			if file == "" {
				path, err := config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
				file = path
			}

			c := &config.ConfigParam{FormatVersion: config.ConfigFormatVersion}
			if err := config.LoadConfig(file); err == nil {
				c = config.Config()
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if opts.serverURL != "" {
				c.Backend.URL = opts.serverURL
			}
			if opts.backendType != "" {
				c.Backend.Type = opts.backendType
			}
			if opts.logLevel != "" {
				c.LogLevel = opts.logLevel
			}
			flags := cmd.Flags()
			if flags.Changed("api-key") {
				c.Backend.APIKey = apiKey
			}
			if flags.Changed("timeout") {
				c.Backend.Timeout = timeout
			}
			if flags.Changed("insecure-skip-verify") {
				c.Backend.InsecureSkipVerify = insecure
			}
			c.FormatVersion = config.ConfigFormatVersion

			if err := config.ValidateConfig(c); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := c.WriteConfig(file); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				printJSON(w, map[string]string{"config": file, "url": c.Backend.URL, "type": c.Backend.Type})
				return nil
			}
			okLabel.Fprintf(w, "configuration written to %s\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key sent as a bearer token")
	cmd.Flags().StringVar(&timeout, "timeout", "", "Request timeout, e.g. 30s")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-verify", false, "Skip TLS certificate verification")
	return cmd
}
