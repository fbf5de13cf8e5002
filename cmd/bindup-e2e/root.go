package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/logging"
	"github.com/williampepple1/bindup-e2e/internal/suite"
)

// app carries state shared by the subcommands
type app struct {
	configFile string
	envFile    string
	verbose    bool

	log      *logrus.Logger
	cfg      *config.AppConfig
	registry *suite.Registry
	exitCode int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bindup-e2e",
		Short: "End-to-end smoke tests for the BiNDup site builder",
		Long: `bindup-e2e drives a browser through the BiNDup web application.

Elements are located through ordered selector fallbacks, flaky steps are
retried with exponential backoff and every timed operation is reported.
Credentials are read from BINDUP_USERNAME and BINDUP_PASSWORD, optionally
loaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to configuration file (YAML)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "File with credential environment variables")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd(a), newListCmd(a), newReportCmd(a))
	return root
}

func (a *app) setup() error {
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}

	a.log = logging.New(os.Stderr, a.verbose)

	if a.configFile != "" {
		cfg, err := config.Load(a.configFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		a.cfg = cfg
		a.log.WithField("file", a.configFile).Info("Loaded configuration")
	} else {
		a.cfg = config.CreateDefault()
		a.log.Debug("Using default configuration (no config file provided)")
	}

	a.registry = suite.Default()
	return nil
}

// execute runs the CLI and returns the process exit code
func execute() (int, error) {
	a := &app{}
	if err := newRootCmd(a).Execute(); err != nil {
		return 1, err
	}
	return a.exitCode, nil
}
