// Package app wires configuration, the oracle, the ranking core and the report sinks behind
// the issuerank command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"issuerank/internal/config"
	"issuerank/internal/errs"
	"issuerank/internal/logging"
	"issuerank/internal/oracle"
)

// Exit statuses.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitPersistence   = 3
)

// App holds the process-level dependencies. Tests swap the writers and the completer factory.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	NewCompleter func(ctx context.Context, cfg oracle.ProviderConfig) (oracle.Completer, error)
	NewLogger    func(level string) (*zap.Logger, error)
}

func New() *App {
	return &App{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		NewCompleter: oracle.NewCompleter,
		NewLogger:    logging.NewLogger,
	}
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := New().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// Run executes the command line and maps the outcome to an exit status.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(a.Stderr, "Error:", err)
	return ExitCode(err)
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errs.Is(err, errs.CodeConfiguration):
		return ExitConfiguration
	case errs.Is(err, errs.CodePersistence):
		return ExitPersistence
	}
	return ExitFailure
}

type options struct {
	configPath     string
	issues         string
	output         string
	model          string
	provider       string
	strategy       string
	promptFile     string
	maxComparisons float64
	seed           int64
	summaryOnly    bool
	historyDB      string
	xlsx           string
	logLevel       string
	verbose        bool
}

// session is the resolved state shared by all subcommands.
type session struct {
	app    *App
	cfg    config.Config
	opts   *options
	logger *zap.Logger
}

func (a *App) Command() *cobra.Command {
	opts := &options{}
	s := &session{app: a, opts: opts}

	root := &cobra.Command{
		Use:   "issuerank",
		Short: "Rank security issues by urgency with an LLM judge",
		Long: `issuerank orders the issues in {"issues": [...]} by urgency.

Strategies:
  bubble  adjacent pairwise comparisons, n(n-1)/2 judgments
  elo     Elo ratings from a seeded sample of pairs (--max-comparisons)
  score   one absolute 1-100 score per issue

When the model fails or replies out of contract, the issue severity decides instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.logger != nil {
				_ = s.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.rank(cmd.Context())
		},
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default issuerank.yaml or $CONFIG_PATH)")
	f.StringVar(&opts.issues, "issues", "", "input issues JSON file")
	f.StringVar(&opts.output, "output", "", "output file for the ranked issues")
	f.StringVar(&opts.model, "model", "", "model id for the selected provider")
	f.StringVar(&opts.provider, "provider", "", "llm provider: anthropic, bedrock, openai, gemini or none")
	f.StringVar(&opts.strategy, "strategy", "", "ranking strategy: bubble, elo or score")
	f.StringVar(&opts.promptFile, "prompt-file", "", "prompt template (default <strategy>_prompt.txt)")
	f.Float64Var(&opts.maxComparisons, "max-comparisons", config.DefaultMaxComparisons, "fraction of pairs compared by the elo strategy")
	f.Int64Var(&opts.seed, "seed", config.DefaultSeed, "seed for elo pair sampling")
	f.StringVar(&opts.historyDB, "history-db", "", "sqlite file recording runs and judgments")
	f.StringVar(&opts.xlsx, "xlsx", "", "also export the ranking to this .xlsx file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.Flags().BoolVar(&opts.summaryOnly, "summary-only", false, "print the summary of an existing output file without ranking")

	root.AddCommand(s.watchCommand(), s.historyCommand())
	return root
}

// setup loads .env, the config file and the environment, then applies flags and validates.
func (s *session) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Configuration("cannot load .env", "", err)
	}

	cfg, err := config.LoadConfig(s.opts.configPath)
	if err != nil {
		return err
	}
	s.applyFlags(cmd, &cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	logger, err := s.app.NewLogger(cfg.LogLevel)
	if err != nil {
		return errs.Configuration("cannot build logger", "", err)
	}
	s.logger = logger
	s.logger.Debug("config loaded",
		zap.String("strategy", cfg.Strategy),
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
		zap.String("issues_path", cfg.IssuesPath),
		zap.String("output_path", cfg.OutputPath),
		zap.Float64("max_comparisons", cfg.MaxComparisons),
		zap.Duration("external_http_timeout", cfg.ExternalHTTPTimeout()),
		logging.FieldSecret("api_key", cfg.APIKey()),
		logging.FieldSecret("slack_bot_token", cfg.SlackBotToken),
	)
	return nil
}

func (s *session) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	set := func(name string, field *string, value string) {
		if flags.Changed(name) {
			*field = value
		}
	}
	set("issues", &cfg.IssuesPath, s.opts.issues)
	set("output", &cfg.OutputPath, s.opts.output)
	set("model", &cfg.LLMModel, s.opts.model)
	set("provider", &cfg.LLMProvider, s.opts.provider)
	set("strategy", &cfg.Strategy, s.opts.strategy)
	set("prompt-file", &cfg.PromptPath, s.opts.promptFile)
	set("history-db", &cfg.HistoryDBPath, s.opts.historyDB)
	set("xlsx", &cfg.XLSXOutputPath, s.opts.xlsx)
	set("log-level", &cfg.LogLevel, s.opts.logLevel)
	if flags.Changed("max-comparisons") {
		cfg.MaxComparisons = s.opts.maxComparisons
	}
	if flags.Changed("seed") {
		cfg.Seed = s.opts.seed
	}
	if s.opts.verbose {
		cfg.LogLevel = "debug"
	}
}
