// Command minion is the CLI surface over the coordination kernel: agent
// registry, messaging, task DAG, file claims, war-room, and crew lifecycle
// (spec.md §6). Every subcommand emits one JSON record to stdout and maps
// kernel errors to the spec's exit codes.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"minionkernel/internal/authz"
	"minionkernel/internal/config"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/logging"
)

var (
	flagDBPath   string
	flagProject  string
	flagCaller   string
	flagDocsDir  string
	flagVerbose  bool

	logger *zap.Logger
)

const (
	exitSuccess      = 0
	exitUserError    = 1
	exitPrecondition = 2
	exitGraceful     = 3
	exitAuthDenied   = 4
)

var rootCmd = &cobra.Command{
	Use:   "minion",
	Short: "Coordination kernel for a fleet of concurrent agent processes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if flagVerbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		l, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l

		cfg := loadConfig()
		logging.Configure(logging.Config{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			JSONFormat: cfg.Logging.JSONFormat,
		}, cfg.LogDir)

		if entry, ok := commandTable[cmd.Name()]; ok {
			if err := authz.Check(authz.Class(callerClass()), entry); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Override datastore location (DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Project name (PROJECT)")
	rootCmd.PersistentFlags().StringVar(&flagCaller, "caller-class", "", "Caller class for authorization (CALLER_CLASS)")
	rootCmd.PersistentFlags().StringVar(&flagDocsDir, "docs-dir", "", "Contract-document directory (DOCS_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		agentCmds()...,
	)
	rootCmd.AddCommand(
		commsCmds()...,
	)
	rootCmd.AddCommand(
		taskCmds()...,
	)
	rootCmd.AddCommand(
		flowCmds()...,
	)
	rootCmd.AddCommand(
		fileCmds()...,
	)
	rootCmd.AddCommand(
		warroomCmds()...,
	)
	rootCmd.AddCommand(
		crewCmds()...,
	)
	rootCmd.AddCommand(
		observabilityCmds()...,
	)
}

// loadConfig applies --docs-dir/config.yaml over DefaultConfig, then CLI
// flags over environment, matching spec.md §6's env-override table.
func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if flagDocsDir != "" {
		cfg.DocsDir = flagDocsDir
		if loaded, err := config.Load(flagDocsDir + "/config.yaml"); err == nil {
			cfg = loaded
			cfg.DocsDir = flagDocsDir
		}
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagProject != "" {
		cfg.Project = flagProject
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "minion.db"
	}
	return cfg
}

func callerClass() string {
	if flagCaller != "" {
		return flagCaller
	}
	return os.Getenv("CALLER_CLASS")
}

// emit writes v as the sole JSON record on stdout (spec.md §6 output
// contract).
func emit(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// exitFor maps a kernel error to the spec's exit code table.
func exitFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch {
	case kernelerr.Is(err, kernelerr.ClassDenied), kernelerr.Is(err, kernelerr.CapabilityMissing):
		return exitAuthDenied
	case kernelerr.Is(err, kernelerr.StaleContext),
		kernelerr.Is(err, kernelerr.UnreadInbox),
		kernelerr.Is(err, kernelerr.NoActivePlan),
		kernelerr.Is(err, kernelerr.MoonCrash),
		kernelerr.Is(err, kernelerr.AlreadyPulled),
		kernelerr.Is(err, kernelerr.BlockedBy),
		kernelerr.Is(err, kernelerr.ClaimHeld),
		kernelerr.Is(err, kernelerr.MissingResult),
		kernelerr.Is(err, kernelerr.InvalidTransition),
		kernelerr.Is(err, kernelerr.WorkerClassMismatch):
		return exitPrecondition
	default:
		return exitUserError
	}
}

// fail prints a one-line error to stderr and exits with the code the kind
// maps to (or 1 for anything unrecognized).
func fail(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(exitFor(err))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}
