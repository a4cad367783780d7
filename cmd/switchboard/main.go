// Command switchboard is a local-first assistant that answers each message
// on-device when it can and forwards it to a remote model when it must.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Switchboard - local-first assistant with remote escalation",
		Long: `Switchboard routes each message to the cheapest backend that can answer it:
  • Short and planning messages stay on the local llama.cpp model
  • Reasoning, long-context and agentic work go to Groq, Gemini or Kimi
  • Answers are grounded in your ingested documents
  • Per-user conversation memory carries context between messages

Start interactive chat:  switchboard
Serve the HTTP API:      switchboard serve
Ingest documents:        switchboard ingest ~/notes`,
		SilenceUsage:      true,
		PersistentPreRunE: initialize,
		RunE:              runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.switchboard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().String("user", defaultUser(), "user id for conversation memory")

	rootCmd.AddCommand(&cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipInit: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Switchboard v%s\n", version)
		},
	})

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

// skipInit marks commands that must run without a loaded config.
const skipInit = "skip-init"

// initialize loads configuration and sets up logging for every command.
func initialize(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipInit] == "true" {
		return nil
	}

	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}

	var err error
	cfg, err = config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	var lc *logging.Config
	if verbose {
		lc = logging.VerboseConfig()
	} else {
		lc = logging.DefaultConfig()
		lc.Level = logging.ParseLevel(cfg.Logging.Level)
	}
	lc.FilePath = cfg.Logging.File
	lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	lc.MaxBackups = cfg.Logging.MaxBackups
	lc.MaxAgeDays = cfg.Logging.MaxAgeDays

	log = logging.New(lc)
	logging.SetGlobal(log)
	log.Debug("config loaded from %s", path)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
