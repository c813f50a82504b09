package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rojolang/interview-coach-go/pkg/coach"
	"github.com/rojolang/interview-coach-go/pkg/coach/server"
	"github.com/rojolang/interview-coach-go/pkg/tui"
	"github.com/rojolang/interview-coach-go/pkg/voice"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "coach",
		Short:         "Interview Coach",
		Long:          "Practice technical interviews with an AI interviewer, by voice in the terminal or in the browser",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults to ./coach.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(interviewCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(setupCmd())

	if err := rootCmd.Execute(); err != nil {
		coach.GetGlobalLogger().WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the global logger
func loadConfig(logOut io.Writer) (*coach.Config, *coach.CoachLogger, error) {
	cfg, err := coach.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := coach.NewCoachLogger(cfg.LogConfig(logOut))
	coach.SetGlobalLogger(logger)
	return cfg, logger, nil
}

func checkConfig(cfg *coach.Config) error {
	if issues := cfg.Validate(); len(issues) > 0 {
		return coach.NewConfigError(strings.Join(issues, "; "))
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newGemini(ctx context.Context, cfg *coach.Config, logger *coach.CoachLogger, metrics *coach.Metrics) (*coach.GeminiClient, error) {
	retrier := coach.NewRetrier(cfg.RetryConfig(), logger)
	gemini, err := coach.NewGeminiClient(ctx, cfg, retrier, logger)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		gemini.SetMetrics(metrics)
	}
	return gemini, nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser interview server",
		Long:  "Serve the web client, the HTTP API and the interview websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			catalog, err := coach.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			store, err := coach.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics := coach.NewMetrics("coach")
			gemini, err := newGemini(ctx, cfg, logger, metrics)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Options{
				Config:   cfg,
				Catalog:  catalog,
				Services: gemini.Services(nil),
				Store:    store,
				Metrics:  metrics,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	return cmd
}

func interviewCmd() *cobra.Command {
	var (
		noAudio bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run a voice interview in the terminal",
		Long:  "Pick a language, role and level, then answer the interviewer by voice or by typing",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The screen owns stdout and stderr, so logs go to a file or nowhere.
			logOut := io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				logOut = f
			}

			cfg, logger, err := loadConfig(logOut)
			if err != nil {
				return err
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			catalog, err := coach.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			store, err := coach.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			gemini, err := newGemini(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}

			var (
				mic    tui.Microphone
				player coach.Player
			)
			if !noAudio {
				dm := voice.NewDeviceManager(logger)
				if err := dm.Initialize(); err != nil {
					return err
				}
				defer dm.Terminate()

				if err := dm.Validate(cfg.InputDeviceID, true, 1, float64(cfg.InputSampleRate)); err != nil {
					return err
				}
				if err := dm.Validate(cfg.OutputDeviceID, false, 1, float64(cfg.OutputSampleRate)); err != nil {
					return err
				}
				mic = voice.NewRecorder(voice.RecorderConfig{
					SampleRate: cfg.InputSampleRate,
					DeviceID:   cfg.InputDeviceID,
				}, dm, logger)
				player = voice.NewPlayer(dm, cfg.OutputDeviceID, logger)
			}

			services := gemini.Services(player)
			ivConfig := coach.InterviewConfigFrom(cfg)
			ivConfig.Logger = logger

			return tui.Run(ctx, tui.Deps{
				Catalog: catalog,
				NewInterview: func(sel coach.Selection) (*coach.Interview, error) {
					return coach.NewInterview(sel, catalog, services, ivConfig)
				},
				Microphone: mic,
				Store:      store,
			})
		},
	}

	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Type answers and skip speech playback")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	return cmd
}

func askCmd() *cobra.Command {
	var (
		sel    coach.Selection
		budget int
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run a text-only interview on stdin/stdout",
		Long:  "Answer each question on a single line; /end finishes the interview early.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			if budget > 0 {
				cfg.QuestionBudget = budget
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			catalog, err := coach.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			gemini, err := newGemini(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}

			ivConfig := coach.InterviewConfigFrom(cfg)
			ivConfig.Logger = logger
			iv, err := coach.NewInterview(sel, catalog, gemini.Services(nil), ivConfig)
			if err != nil {
				return err
			}
			defer iv.Close()

			report, err := runAsk(ctx, iv, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !save || report == nil {
				return nil
			}

			store, err := coach.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(ctx, report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved as %s\n", report.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sel.Language, "language", "en", "Interview language id")
	cmd.Flags().StringVar(&sel.Role, "role", "backend", "Role id")
	cmd.Flags().StringVar(&sel.Level, "level", "mid", "Level id")
	cmd.Flags().IntVarP(&budget, "questions", "n", 0, "Number of questions (overrides question_budget)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the feedback report to the store")
	return cmd
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Saved feedback reports",
	}
	cmd.AddCommand(reportsListCmd())
	cmd.AddCommand(reportsShowCmd())
	return cmd
}

func openStore() (coach.ReportStore, error) {
	cfg, _, err := loadConfig(os.Stderr)
	if err != nil {
		return nil, err
	}
	return coach.OpenStore(cfg)
}

func reportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			printReportList(cmd.OutOrStdout(), reports)
			return nil
		},
	}
}

func reportsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [report-id]",
		Short: "Show one saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := report.MarshalIndent()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON report")
	return cmd
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the available languages, roles and levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			catalog, err := coach.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), catalog)
			return nil
		},
	}
}

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Audio device management",
	}
	cmd.AddCommand(devicesListCmd())
	return cmd
}

func devicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			dm := voice.NewDeviceManager(logger)
			if err := dm.Initialize(); err != nil {
				return err
			}
			defer dm.Terminate()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Input Devices:")
			for _, d := range dm.Inputs() {
				fmt.Fprintf(out, "  %s\n", voice.Describe(d))
			}
			fmt.Fprintln(out, "\nOutput Devices:")
			for _, d := range dm.Outputs() {
				fmt.Fprintf(out, "  %s\n", voice.Describe(d))
			}
			return nil
		},
	}
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Setup and configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the configuration after defaults, coach.yaml, .env and COACH_* variables, with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cfg.PrintConfig(out)
			if issues := cfg.Validate(); len(issues) > 0 {
				fmt.Fprintln(out, "\nIssues:")
				for _, issue := range issues {
					fmt.Fprintf(out, "  ✗ %s\n", issue)
				}
			} else {
				fmt.Fprintln(out, "\n✓ Configuration is valid")
			}
			return nil
		},
	})
	return cmd
}
