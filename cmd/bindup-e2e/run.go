package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/williampepple1/bindup-e2e/internal/browser"
	"github.com/williampepple1/bindup-e2e/internal/io"
	"github.com/williampepple1/bindup-e2e/internal/runner"
)

type runFlags struct {
	workers   int
	threshold float64
	output    string
	casesFile string
	driver    string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [case...]",
		Short: "Run test cases",
		Long: `Run the named cases, the cases listed in --cases-file, or every
registered case. The command exits non-zero when the pass rate is below the
threshold.

Examples:
  bindup-e2e run
  bindup-e2e run login --driver playwright --workers 2
  bindup-e2e run --cases-file smoke.txt --output results.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyRunFlags(cmd, a, f)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd, args)
		},
	}

	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of concurrent workers")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "Minimum pass rate for a zero exit code")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "File to save results to")
	cmd.Flags().StringVar(&f.casesFile, "cases-file", "", "File listing case names, one per line")
	cmd.Flags().StringVar(&f.driver, "driver", "", "Browser driver: chromedp, playwright or static")
	return cmd
}

// applyRunFlags overrides configuration with the flags that were set
func applyRunFlags(cmd *cobra.Command, a *app, f *runFlags) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		a.cfg.Runner.Workers = f.workers
	}
	if flags.Changed("threshold") {
		a.cfg.Runner.PassThreshold = f.threshold
	}
	if flags.Changed("output") {
		a.cfg.IO.OutputFile = f.output
	}
	if flags.Changed("cases-file") {
		a.cfg.IO.CasesFile = f.casesFile
	}
	if flags.Changed("driver") {
		a.cfg.Browser.Driver = f.driver
	}
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := io.NewConsole(cmd.OutOrStdout())

	names, err := io.NewCaseReader(&a.cfg.IO).GetNames(args)
	if err != nil {
		return fmt.Errorf("reading cases: %w", err)
	}
	cases, err := a.registry.Select(names)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases to run")
	}

	console.PrintPhase(fmt.Sprintf("Starting %s browser", a.cfg.Browser.Driver))
	b, err := browser.New(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.log.WithError(err).Warn("Closing browser failed")
		}
	}()

	console.PrintPhase(fmt.Sprintf("Running %d cases with %d workers", len(cases), a.cfg.Runner.Workers))
	summary, runErr := runner.NewPool(a.cfg, b, a.log).Run(ctx, cases)
	if runErr != nil {
		a.log.WithError(runErr).Warn("Run interrupted")
	}

	console.PrintSummary(summary)

	if err := io.NewResultWriter(&a.cfg.IO).SaveToFile(summary); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	if a.cfg.IO.OutputFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s\n", a.cfg.IO.OutputFile)
	}

	a.exitCode = summary.ExitCode()
	if runErr != nil {
		a.exitCode = 1
	}
	return nil
}
