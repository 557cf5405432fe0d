// Package cli implements the stabackend command line. Each command maps to one backend
// operation and reports its result as text or, with --json, as a JSON object.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/sensorthings/internal/backend"
	"github.com/tansive/sensorthings/internal/common/apperrors"
	"github.com/tansive/sensorthings/internal/common/logtrace"
	"github.com/tansive/sensorthings/internal/config"

	_ "github.com/tansive/sensorthings/internal/backend/sensorthings"
)

// ErrAlreadyHandled marks an error whose output has already been printed.
var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

type globalOptions struct {
	configFile  string
	serverURL   string
	backendType string
	logLevel    string
	jsonOutput  bool
}

var opts globalOptions

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts = globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "stabackend [command] [flags]",
		Short: "Manage SensorThings collections through the catalog backend",
		Long: `stabackend drives a catalog backend from the command line. Collections are
dotted names whose last segment is the SensorThings entity set, so
"iot.demo.Things" and "Things" address the same collection.

Examples:
  # Remove every Thing
  stabackend delete-collection iot.demo.Things

  # Create Datastreams from a YAML file
  stabackend upsert iot.demo.Datastreams -f datastreams.yaml

  # Update entities in place
  stabackend upsert Things -f things.yaml --method PATCH

  # Delete one Observation
  stabackend delete-item Observations 1042`,
		PersistentPreRunE: preRunHandlePersistents,
		SilenceErrors:     true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file to override default")
	flags.StringVar(&opts.serverURL, "url", "", "Service root URL, overrides the configured backend url")
	flags.StringVar(&opts.backendType, "type", "", "Backend type, overrides the configured backend type")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newAddCollectionCmd(),
		newDeleteCollectionCmd(),
		newHasCollectionCmd(),
		newUpsertCmd(),
		newDeleteItemCmd(),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, ErrAlreadyHandled) {
			printError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	msg := err.Error()
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		msg = strings.Replace(msg, appErr.Error(), appErr.ErrorAll(), 1)
	}
	if opts.jsonOutput {
		printJSON(w, map[string]string{"error": msg})
		return
	}
	errorLabel.Fprintf(w, "Error: %s\n", msg)
}

// preRunHandlePersistents loads the configuration and sets up logging. A missing
// default config file is tolerated when --url supplies the service location.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "version":
		return nil
	case "config":
		logtrace.InitLogger(opts.logLevel)
		return nil
	}

	explicit := opts.configFile != ""
	if !explicit {
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		opts.configFile = path
	}

	if err := config.LoadConfig(opts.configFile); err != nil {
		if explicit || opts.serverURL == "" || !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	level := opts.logLevel
	if level == "" && config.Config() != nil {
		level = config.Config().LogLevel
	}
	logtrace.InitLogger(level)
	return nil
}

// getBackend builds the configured backend with command line overrides applied.
func getBackend(ctx context.Context) (backend.Backend, error) {
	typeName := "SensorThings"
	defs := map[string]any{}
	if c := config.Config(); c != nil {
		typeName = c.Backend.Type
		defs = c.Backend.Defs()
	}
	if opts.backendType != "" {
		typeName = opts.backendType
	}
	if opts.serverURL != "" {
		defs["url"] = opts.serverURL
	}
	b, err := backend.New(ctx, typeName, defs)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("backend", b.Type()).Msg("backend ready")
	return b, nil
}

type result struct {
	Operation  string `json:"operation"`
	Collection string `json:"collection"`
	Item       string `json:"item,omitempty"`
	Result     bool   `json:"result"`
}

// printResult reports a boolean outcome. A false result has already been explained by
// the backend's log output, so ErrAlreadyHandled is returned to set the exit status.
func printResult(cmd *cobra.Command, r result) error {
	w := cmd.OutOrStdout()
	if opts.jsonOutput {
		printJSON(w, r)
	} else {
		target := r.Collection
		if r.Item != "" {
			target = fmt.Sprintf("%s(%s)", r.Collection, r.Item)
		}
		if r.Result {
			okLabel.Fprintf(w, "%s %s: ok\n", r.Operation, target)
		} else {
			errorLabel.Fprintf(w, "%s %s: failed\n", r.Operation, target)
		}
	}
	if !r.Result {
		return ErrAlreadyHandled
	}
	return nil
}

func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of stabackend",
		Run: func(cmd *cobra.Command, args []string) {
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{
					"version":  getCLIVersion(),
					"backends": backend.Types(),
				})
				return
			}
			cmd.Printf("stabackend %s\n", getCLIVersion())
		},
	}
}

func getCLIVersion() string {
	return "v0.1.0-alpha.1"
}
