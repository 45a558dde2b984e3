package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/studiowebux/chatbench/internal/cli"
	"github.com/studiowebux/chatbench/internal/config"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// A failed suite already printed its report
		if !errors.Is(err, cli.ErrScenariosFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatbench",
	Short: "Chat-completion API sanity and load testing",
	Long: `chatbench checks a Mistral chat-completion endpoint from the outside.

It runs a suite of positive, edge and negative scenarios against the API and
reports pass/fail per scenario and model, or drives concurrent simulated users
and reports latency percentiles and error rates.

Configuration comes from the environment (MISTRAL_API_TOKEN, MISTRAL_BASE_URL,
MISTRAL_MODELS, ...), optionally overridden by a .env file.

Examples:
  chatbench sanity                              # Built-in suite, models from MISTRAL_MODELS
  chatbench sanity --models mistral-small-latest --kind negative
  chatbench sanity suite.yaml --html reports/sanity.html
  chatbench load -u 5 -r 1 -t 30s               # 5 users for 30 seconds
  chatbench load profile.yaml --headless --report load.db
  chatbench scenarios --kind edge               # List scenarios without sending
  chatbench mock --port 8080                    # Offline API for rehearsals`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sanityCmd = &cobra.Command{
	Use:   "sanity [file]",
	Short: "Run the sanity scenario suite",
	Long: `Run the sanity scenarios one after another against every configured model.

Without a file the built-in suite is used. Exits with status 1 when any
scenario fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.SanityOptions{
			Common: commonOptions(cmd),
			File:   fileArg(args),
			Models: config.ParseList(flagModels),
			Kinds:  config.ParseList(flagKinds),
			Run:    flagRun,
		}
		if cmd.Flags().Changed("delay") {
			opts.Delay = &flagDelay
		}
		return cli.Sanity(cmd.Context(), opts)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Run a load test",
	Long: `Start concurrent simulated users that send chat-completion requests.

Without a file every user sends one short message and expects HTTP 200.
Flags override the values of the load profile. Without --headless a live
progress view is shown; q, esc or ctrl+c cancels the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.LoadOptions{
			Common:       commonOptions(cmd),
			File:         fileArg(args),
			Model:        flagModel,
			Headless:     flagHeadless,
			MetricsAddr:  flagMetricsAddr,
			MaxErrorRate: flagMaxErrorRate,
		}
		flags := cmd.Flags()
		if flags.Changed("users") {
			opts.Users = &flagUsers
		}
		if flags.Changed("spawn-rate") {
			opts.SpawnRate = &flagSpawnRate
		}
		if flags.Changed("run-time") {
			opts.RunTime = &flagRunTime
		}
		if flags.Changed("requests") {
			opts.RequestsPerUser = &flagRequests
		}
		if flags.Changed("max-rps") {
			opts.MaxRPS = &flagMaxRPS
		}
		return cli.Load(cmd.Context(), opts)
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [file]",
	Short: "List the scenarios of a suite",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Scenarios(cli.ScenariosOptions{
			Common: commonOptions(cmd),
			File:   fileArg(args),
			Kinds:  config.ParseList(flagKinds),
			Run:    flagRun,
		})
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock [config]",
	Short: "Serve an offline imitation of the chat-completion API",
	Long: `Serve a local chat-completion API that answers like the real service
for the built-in scenarios. Latency, jitter and an error rate can be set in
the config file to rehearse load tests.

Requests must carry MISTRAL_API_TOKEN (or --token) when one is set; any
token is accepted otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.MockOptions{
			Common: commonOptions(cmd),
			File:   fileArg(args),
			Host:   flagMockHost,
			Token:  flagMockToken,
		}
		if cmd.Flags().Changed("port") {
			opts.Port = &flagMockPort
		}
		return cli.Mock(cmd.Context(), opts)
	},
}

// Shared flags
var (
	flagEnvFile   string
	flagLogLevel  string
	flagLogFormat string
	flagHTML      string
	flagReports   []string
	flagVerbose   bool
)

// Flags for sanity and scenarios
var (
	flagModels string
	flagKinds  string
	flagRun    string
	flagDelay  time.Duration
)

// Flags for load
var (
	flagModel        string
	flagUsers        int
	flagSpawnRate    float64
	flagRunTime      time.Duration
	flagRequests     int
	flagMaxRPS       float64
	flagHeadless     bool
	flagMetricsAddr  string
	flagMaxErrorRate float64
)

// Flags for mock
var (
	flagMockHost  string
	flagMockPort  int
	flagMockToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment overrides from file (default .env if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (console/json)")

	for _, cmd := range []*cobra.Command{sanityCmd, loadCmd} {
		cmd.Flags().StringVar(&flagHTML, "html", "", "Write an HTML report to this path")
		cmd.Flags().StringArrayVar(&flagReports, "report", []string{}, "Write a report (.html/.json/.yaml/.db), can be repeated")
		cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "List every result, not only failures")
	}

	// sanity flags
	sanityCmd.Flags().StringVar(&flagModels, "models", "", "Comma-separated models to test")
	sanityCmd.Flags().StringVar(&flagKinds, "kind", "", "Only run these kinds (positive,edge,negative)")
	sanityCmd.Flags().StringVar(&flagRun, "run", "", "Only run scenarios whose name matches this regex")
	sanityCmd.Flags().DurationVar(&flagDelay, "delay", 0, "Pause between two requests")

	// scenarios flags
	scenariosCmd.Flags().StringVar(&flagKinds, "kind", "", "Only list these kinds (positive,edge,negative)")
	scenariosCmd.Flags().StringVar(&flagRun, "run", "", "Only list scenarios whose name matches this regex")

	// load flags
	loadCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model to load (default first of MISTRAL_MODELS)")
	loadCmd.Flags().IntVarP(&flagUsers, "users", "u", 1, "Number of simulated users")
	loadCmd.Flags().Float64VarP(&flagSpawnRate, "spawn-rate", "r", 2, "Users started per second")
	loadCmd.Flags().DurationVarP(&flagRunTime, "run-time", "t", time.Minute, "Stop after this duration (0 to run by request count)")
	loadCmd.Flags().IntVarP(&flagRequests, "requests", "n", 0, "Requests per user (0 for unlimited)")
	loadCmd.Flags().Float64Var(&flagMaxRPS, "max-rps", 0, "Global requests per second cap (0 disables it)")
	loadCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Disable the interactive progress view")
	loadCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	loadCmd.Flags().Float64Var(&flagMaxErrorRate, "max-error-rate", -1, "Exit with status 1 above this error rate (0..1, negative disables it)")

	// mock flags
	mockCmd.Flags().StringVar(&flagMockHost, "host", "", "Listen host (default localhost)")
	mockCmd.Flags().IntVarP(&flagMockPort, "port", "p", 8080, "Listen port (0 picks a free one)")
	mockCmd.Flags().StringVar(&flagMockToken, "token", "", "Required API token (default MISTRAL_API_TOKEN)")

	// Add subcommands
	rootCmd.AddCommand(sanityCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(mockCmd)
}

func commonOptions(cmd *cobra.Command) cli.Common {
	return cli.Common{
		EnvFile:   flagEnvFile,
		LogLevel:  flagLogLevel,
		LogFormat: flagLogFormat,
		HTML:      flagHTML,
		Reports:   flagReports,
		Verbose:   flagVerbose,
		Out:       cmd.OutOrStdout(),
	}
}

func fileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
