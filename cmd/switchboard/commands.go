package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/switchboard/internal/app"
	"github.com/normanking/switchboard/internal/auth"
	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/ingestion"
	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/ui"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT
// ═══════════════════════════════════════════════════════════════════════════════

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive terminal chat",
		RunE:  runChat,
	}
	cmd.Flags().String("user", defaultUser(), "user id for conversation memory")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// The alt screen owns the terminal; logs still reach the log file.
	logging.DisableConsoleOutput()
	defer logging.EnableConsoleOutput()

	uiCfg := ui.Config{
		Backend:   a.Router,
		Collector: a.Collector,
		UserID:    user,
		Timeout:   3 * time.Minute,
	}
	if a.Memory != nil {
		uiCfg.History = a.Memory
	}
	return ui.Run(ctx, uiCfg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// ASK
// ═══════════════════════════════════════════════════════════════════════════════

func askCmd() *cobra.Command {
	var user string
	var showRoute bool

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Answer one message and exit",
		Long: `Answer a single message through the router.

Examples:
  switchboard ask "hi"
  switchboard ask --route "Analyze why our deploys fail on Mondays"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancelReq := context.WithTimeout(ctx, 3*time.Minute)
			defer cancelReq()

			res, err := a.Router.Respond(ctx, strings.Join(args, " "), user)
			if err != nil {
				return err
			}
			if showRoute {
				fmt.Fprintf(os.Stderr, "[%s/%s]\n", res.Route, res.Reason)
			}
			fmt.Println(res.Response)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id for conversation memory (empty = anonymous)")
	cmd.Flags().BoolVar(&showRoute, "route", false, "print the route and reason to stderr")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.NewScheduler()
			if err != nil {
				return err
			}
			if sched != nil {
				sched.Start()
				defer sched.Stop()
			}

			srv, err := a.NewServer()
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// KNOWLEDGE
// ═══════════════════════════════════════════════════════════════════════════════

func ingestCmd() *cobra.Command {
	var (
		source    string
		chunkSize int
		force     bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest a file or directory into the knowledge store",
		Long: `Split .txt, .md and .pdf files into chunks and index them.
Files whose content has not changed since the last run are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := app.OpenKnowledge(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open knowledge store: %w", err)
			}
			defer store.Close()

			pc := ingestion.ConfigFrom(cfg.Ingestion)
			if source != "" {
				pc.Source = source
			}
			if chunkSize > 0 {
				pc.ChunkSizeWords = chunkSize
			}
			pc.Force = force

			report, err := ingestion.NewPipeline(store, pc).Ingest(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				return ingestFailure(report)
			}
			for _, f := range report.Files {
				line := fmt.Sprintf("  %-11s %s", f.Outcome, f.Path)
				if f.Chunks > 0 {
					line += fmt.Sprintf(" (%d chunks)", f.Chunks)
				}
				if f.Error != "" {
					line += ": " + f.Error
				}
				fmt.Println(line)
			}
			fmt.Printf("\n%d files ingested, %d unchanged, %d failed; %d chunks in %s\n",
				report.Count(ingestion.OutcomeIngested),
				report.Count(ingestion.OutcomeUnchanged),
				report.Count(ingestion.OutcomeFailed),
				report.Chunks,
				report.Duration.Round(time.Millisecond))
			return ingestFailure(report)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source label prefix (default ingestion.source)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "words per chunk (default ingestion.chunk_size_words)")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest files even if unchanged")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// ingestFailure turns failed files into a non-zero exit once the report has
// been printed.
func ingestFailure(report *ingestion.Report) error {
	if n := report.Count(ingestion.OutcomeFailed); n > 0 {
		return fmt.Errorf("%d of %d files failed to ingest: %w", n, len(report.Files), report.Err())
	}
	return nil
}

func searchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := app.OpenKnowledge(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open knowledge store: %w", err)
			}
			defer store.Close()

			results, err := store.Query(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. %s #%d (distance %.3f)\n   %s\n\n",
					i+1, r.Source, r.ChunkIndex, r.Distance, truncate(r.Content, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "number of results")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ═══════════════════════════════════════════════════════════════════════════════

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear conversation memory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [user]",
		Short: "Print a user's stored turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMemory(func(ctx context.Context, m memory.Store) error {
				turns, err := m.GetHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if len(turns) == 0 {
					fmt.Printf("No history for %s.\n", args[0])
					return nil
				}
				for _, t := range turns {
					fmt.Printf("[%s] %-9s %s\n", t.CreatedAt.Format(time.DateTime), t.Role, t.Content)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [user]",
		Short: "Delete a user's stored turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMemory(func(ctx context.Context, m memory.Store) error {
				if err := m.Clear(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Cleared history for %s.\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func withMemory(fn func(context.Context, memory.Store) error) error {
	m, err := memory.New(cfg.Memory)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, m)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Switchboard Configuration:")
			fmt.Println("──────────────────────────")
			fmt.Printf("Short threshold:   %d\n", cfg.Router.ShortMessageThreshold)
			fmt.Printf("Long threshold:    %d\n", cfg.Router.LongContextThreshold)
			fmt.Printf("Classifier:        %t\n", cfg.Router.ClassifierEnabled)
			fmt.Printf("Fallback:          %s\n", cfg.Router.FallbackStrategy)
			fmt.Printf("Local model:       %s\n", cfg.Local.ModelPath)
			fmt.Printf("Groq key set:      %t\n", cfg.Providers.Groq.APIKey != "")
			fmt.Printf("Gemini key set:    %t\n", cfg.Providers.Gemini.APIKey != "")
			fmt.Printf("Kimi key set:      %t\n", cfg.Providers.Kimi.APIKey != "")
			fmt.Printf("Knowledge dir:     %s\n", cfg.Knowledge.DataDir)
			fmt.Printf("Embedder:          %s/%s\n", cfg.Knowledge.Embedder.Provider, cfg.Knowledge.Embedder.Model)
			fmt.Printf("Memory:            %s (%d turns)\n", cfg.Memory.Backend, cfg.Memory.MaxTurns)
			fmt.Printf("Server:            %s (auth %t)\n", cfg.Server.Addr, cfg.Server.AuthTokenHash != "")
			fmt.Printf("Watch dir:         %s\n", cfg.Ingestion.WatchDir)
			fmt.Printf("Log level:         %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			fmt.Println(config.DefaultPath())
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipInit: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	var save bool
	hashCmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Generate an API token and its bcrypt hash",
		Long: `Print a bearer token and the hash to store in server.auth_token_hash.
A random token is generated when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				t, err := auth.GenerateToken()
				if err != nil {
					return err
				}
				token = t
			}

			hash, err := auth.HashToken(token, auth.DefaultConfig().BcryptCost)
			if err != nil {
				return err
			}
			fmt.Printf("token: %s\nhash:  %s\n", token, hash)

			if save {
				cfg.Server.AuthTokenHash = hash
				path := cfgPath
				if path == "" {
					path = config.DefaultPath()
				}
				if err := cfg.SaveToPath(path); err != nil {
					return err
				}
				fmt.Printf("Saved hash to %s\n", path)
			}
			return nil
		},
	}
	hashCmd.Flags().BoolVar(&save, "save", false, "store the hash in the config file")
	cmd.AddCommand(hashCmd)

	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
