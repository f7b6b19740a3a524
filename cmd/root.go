package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanofslack/ovh-reconcile/internal/config"
	"github.com/evanofslack/ovh-reconcile/internal/logger"
	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error, including failed API calls.
	ExitCodeError = 1
	// ExitCodeInvalid indicates a missing or malformed parameter.
	ExitCodeInvalid = 2
	// ExitCodeRefused indicates an ambiguous match or an unsupported hardware topology.
	ExitCodeRefused = 3
	// ExitCodeTimeout indicates polling ran out of attempts.
	ExitCodeTimeout = 4
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	simulate   bool
	logLevel   string
	maxRetry   int
	sleep      time.Duration
}

var (
	opts globalOptions
	cfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ovh-reconcile",
	Short: "Reconcile OVH resources with a declared state",
	Long: `ovh-reconcile brings OVH resources (DNS records, reverses, boot modes,
monitoring, vrack membership, installations and installation templates)
to a declared state. Each run reads the current state, applies at most the
corrective calls needed and prints the outcome as JSON on stdout.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		if opts.logLevel != "" {
			loaded.Log.Level = opts.logLevel
		}
		logger.Configure(loaded.Log.Level, loaded.Log.Env)
		cfg = loaded
		return nil
	},
}

func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ovh-reconcile version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps the error taxonomy to semantic exit codes.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var invalid *reconcile.ValidationError
	if errors.As(err, &invalid) {
		return ExitCodeInvalid
	}

	var ambiguous *reconcile.AmbiguityError
	if errors.As(err, &ambiguous) {
		return ExitCodeRefused
	}

	var topology *reconcile.TopologyMismatchError
	if errors.As(err, &topology) {
		return ExitCodeRefused
	}

	var exhausted *reconcile.PollExhaustedError
	if errors.As(err, &exhausted) {
		return ExitCodeTimeout
	}

	return ExitCodeError
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "config file, ignored when missing")
	flags.BoolVar(&opts.simulate, "simulate", false, "report the corrective action without applying it")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.IntVar(&opts.maxRetry, "max-retry", 0, "polling attempts, overrides poll.maxRetry")
	flags.DurationVar(&opts.sleep, "sleep", 0, "delay between polling attempts, overrides poll.sleep")

	rootCmd.AddCommand(
		newDNSCmd(),
		newReverseCmd(),
		newBootCmd(),
		newMonitoringCmd(),
		newVrackCmd(),
		newInstallCmd(),
		newStatusCmd(),
		newTemplateCmd(),
		newTerminateCmd(),
		newListCmd(),
		newMACCmd(),
		newJournalCmd(),
	)
}
