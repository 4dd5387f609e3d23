package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"cattos-tracker/internal/apiclient"
	"cattos-tracker/internal/config"
	"cattos-tracker/internal/discovery"
	"cattos-tracker/internal/history"
	"cattos-tracker/internal/parser"
	"cattos-tracker/internal/tracker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cattos-tracker",
		Short: "Equipment tracker for the CattosItemTracker addon",
		Long: `Reads the CattosItemTracker SavedVariables files of a World of Warcraft
installation, keeps a per-character equipment history and posts changes to
the collection API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(setMainCmd())

	return rootCmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a SavedVariables file and print its characters as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runParse(cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List accounts, SavedVariables files and character folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runScan(cmd.OutOrStdout(), cfg)
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Read the SavedVariables once and record changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(ctx context.Context, t *tracker.Tracker) error {
				sum, err := t.Refresh(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "files=%d failed=%d characters=%d snapshots=%d delivered=%t\n",
					sum.Files, sum.Failed, sum.Characters, sum.Snapshots, sum.Delivered)
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the SavedVariables until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(ctx context.Context, t *tracker.Tracker) error {
				return t.Run(ctx)
			})
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send the stored history to the API regardless of changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(ctx context.Context, t *tracker.Tracker) error {
				return t.ForceSync(ctx)
			})
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [character]",
		Short: "List tracked characters or show one character's latest equipment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := setupContext()
			defer cancel()

			h, err := openHistory(ctx, cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			if len(args) == 1 {
				return printCharacter(cmd.OutOrStdout(), h, args[0])
			}
			return printCharacters(cmd.OutOrStdout(), h, cfg.API.MainCharacter)
		},
	}
}

func setMainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-main <character>",
		Short: "Store the main character in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			onlyMain, _ := cmd.Flags().GetBool("only")

			key := args[0]
			if !parser.IsEntryKey(key) {
				return fmt.Errorf("character %q is not in Name-Realm form", key)
			}

			// Environment and flag overrides stay out of the written file.
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			cfg.API.MainCharacter = key
			if cmd.Flags().Changed("only") {
				cfg.API.OnlySendMain = onlyMain
			}
			return cfg.Save(configPath)
		},
	}

	cmd.Flags().Bool("only", false, "Send only the main character to the API")

	return cmd
}

// loadConfig reads the config and configures the global logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(lc config.LoggingConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func openHistory(ctx context.Context, cfg *config.Config) (*history.History, error) {
	backend, err := history.NewBackend(ctx, history.Options{
		Backend:     cfg.History.Backend,
		Path:        cfg.History.Path,
		BoltPath:    cfg.History.BoltPath,
		DatabaseURL: cfg.History.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open history backend: %w", err)
	}

	h, err := history.Open(ctx, backend, cfg.History.MaxSnapshots)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return h, nil
}

// withTracker wires the tracker from the config and runs fn with it.
func withTracker(fn func(ctx context.Context, t *tracker.Tracker) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := setupContext()
	defer cancel()

	h, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	install := discovery.NewInstall(cfg.WowPath)
	if cfg.SavedVariablesFile == "" && !install.Valid() {
		log.Warn().Str("path", cfg.WowPath).Msg("No game executable found in install path")
	}

	opts := tracker.Options{
		File:     cfg.SavedVariablesFile,
		Install:  install,
		Parser:   newParser(cfg),
		History:  h,
		Workers:  cfg.WorkerCount,
		Interval: cfg.UpdateInterval(),
	}
	if cfg.API.Enabled {
		opts.Deliverer = apiclient.New(apiclient.Options{
			URL:    cfg.API.URL,
			APIKey: cfg.API.Key,
			Selection: apiclient.Selection{
				MainCharacter: cfg.API.MainCharacter,
				OnlySendMain:  cfg.API.OnlySendMain,
			},
			Timeout:     cfg.APITimeout(),
			InsecureTLS: cfg.API.InsecureTLS,
		})
	} else {
		log.Info().Msg("API delivery disabled")
	}

	return fn(ctx, tracker.New(opts))
}

func newParser(cfg *config.Config) *parser.SavedVariablesParser {
	return parser.NewSavedVariablesParser(
		parser.WithMarker(cfg.Marker),
		parser.WithContainer(cfg.Container),
		parser.WithLogger(log.Logger),
	)
}

func runParse(w io.Writer, cfg *config.Config, path string) error {
	result, err := newParser(cfg).ParseFile(path)
	if err != nil {
		return err
	}

	records := make([]*parser.Record, 0, len(result))
	for _, key := range slices.Sorted(maps.Keys(result)) {
		records = append(records, result[key])
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func runScan(w io.Writer, cfg *config.Config) error {
	install := discovery.NewInstall(cfg.WowPath)
	fmt.Fprintf(w, "Install: %s (valid: %t)\n", install.Root, install.Valid())

	accounts, err := install.Accounts()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	fmt.Fprintf(w, "Accounts: %s\n", strings.Join(accounts, ", "))

	files, err := install.SavedVariablesFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(w, "File: %s\n", f)
	}

	chars, err := install.ScanCharacters()
	if err != nil {
		return fmt.Errorf("scan characters: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tCHARACTER\tTRACKED")
	for _, c := range chars {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", c.Account, c.Key, c.HasSavedVariables)
	}
	return tw.Flush()
}

func printCharacters(w io.Writer, h *history.History, main string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTER\tCLASS\tITEMS\tSNAPSHOTS\tLAST SEEN")
	for _, c := range h.Characters() {
		name := c.Character
		if name == main {
			name += " *"
		}
		items, seen := 0, "-"
		if s := c.Latest(); s != nil {
			items, seen = s.ItemCount(), s.DateTime
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", name, c.Class, items, len(c.Snapshots), seen)
	}
	return tw.Flush()
}

func printCharacter(w io.Writer, h *history.History, key string) error {
	c, ok := h.Get(key)
	if !ok {
		return fmt.Errorf("character %q not tracked", key)
	}

	fmt.Fprintf(w, "%s (%s, %s)\n", c.Character, c.Class, c.RealmName())
	s := c.Latest()
	if s == nil {
		fmt.Fprintln(w, "No snapshots")
		return nil
	}
	fmt.Fprintf(w, "Snapshot %s, %d items\n", s.DateTime, s.ItemCount())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, slot := range slices.Sorted(maps.Keys(s.Equipment)) {
		fmt.Fprintf(tw, "%s\t%d\n", apiclient.SlotName(slot), s.Equipment[slot])
	}
	return tw.Flush()
}
