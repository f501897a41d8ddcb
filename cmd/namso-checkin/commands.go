package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/batch"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/config"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/credentials"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/gpm"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/history"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/layout"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/notify"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/otp"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/pipeline"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/results"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/site"
)

var (
	runRange       string
	runRetryFailed bool
	runConcurrency int
	scheduleCron   string
	historyLimit   int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the check-in batch",
		RunE:  runBatch,
	}
	runCmd.Flags().StringVar(&runRange, "range", "", "profile range, e.g. Depin010-Depin180")
	runCmd.Flags().BoolVar(&runRetryFailed, "retry-failed", false, "only profiles missing from or errored in the results file")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "override configured concurrency")
	rootCmd.AddCommand(runCmd)

	debugCmd := &cobra.Command{
		Use:   "debug PROFILE",
		Short: "Run a single profile by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runDebug,
	}
	rootCmd.AddCommand(debugCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check GPM connectivity and list its profiles",
		RunE:  runCheck,
	}
	rootCmd.AddCommand(checkCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch on a cron schedule",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "30 8 * * *", "five-field cron expression")
	scheduleCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "override configured concurrency")
	rootCmd.AddCommand(scheduleCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent batch runs from the journal",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of batches to show")
	rootCmd.AddCommand(historyCmd)
}

// app bundles everything one batch run needs.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	gpm          *gpm.Client
	creds        *credentials.Store
	results      *results.Store
	journal      *history.Store
	orchestrator *batch.Orchestrator
}

func (a *app) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
}

// buildApp loads config and credentials and wires the whole stack. The
// GPM service must answer its health check and the credentials file
// must yield at least one profile.
func buildApp(requireGPM bool) (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	gpmClient := gpm.NewClient(cfg.GPM.APIBase, logger)
	if requireGPM && !gpmClient.Healthy(context.Background()) {
		return nil, fmt.Errorf("GPM not reachable at %s, start GPM-Login first", cfg.GPM.APIBase)
	}

	credStore := credentials.NewStore()
	if err := credStore.Load(cfg.General.CredentialsFile); err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if credStore.Count() == 0 {
		return nil, fmt.Errorf("no usable profiles in %s", cfg.General.CredentialsFile)
	}
	logger.Info("credentials loaded", "profiles", credStore.Count(), "file", cfg.General.CredentialsFile)

	resultStore := results.NewStore(cfg.General.ResultsFile)

	journal, err := history.New(cfg.General.HistoryDB)
	if err != nil {
		logger.Warn("run journal unavailable", "error", err)
		journal = nil
	}

	concurrency := cfg.General.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}

	env := &pipeline.GPMEnvironment{
		Client: gpmClient,
		Grid: layout.Config{
			ScreenWidth:  cfg.Window.ScreenWidth,
			ScreenHeight: cfg.Window.ScreenHeight,
			WindowWidth:  cfg.Window.WindowWidth,
			WindowHeight: cfg.Window.WindowHeight,
			Padding:      cfg.Window.Padding,
		},
		WindowScale: cfg.Window.Scale,
	}

	pipe := pipeline.New(
		env,
		site.NewAuthenticator(logger),
		&pipeline.GmailFetcher{
			Extractor: otp.NewExtractor(cfg.OTPTimeout(), otp.Pick(cfg.OTP.Pick), logger),
		},
		site.NewActions(logger, cfg.Actions.ConvertThreshold, cfg.Actions.MaxRetries),
		resultStore,
		logger,
	)
	pipe.Pause = cfg.Pause()

	telegram := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if telegram.Enabled() {
		logger.Info("telegram notifications enabled")
	}

	var journalIface batch.Journal
	if journal != nil {
		journalIface = journal
	}
	orch := batch.New(pipe, journalIface, telegram, logger)
	orch.Concurrency = concurrency
	orch.StaggerDelay = cfg.StaggerDelay()

	return &app{
		cfg:          cfg,
		logger:       logger,
		gpm:          gpmClient,
		creds:        credStore,
		results:      resultStore,
		journal:      journal,
		orchestrator: orch,
	}, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := "all"
	selected := batch.SelectAll(a.creds.All())

	switch {
	case runRange != "":
		start, end, err := batch.ParseRange(runRange)
		if err != nil {
			return err
		}
		selected, err = batch.SelectRange(a.creds.All(), start, end)
		if err != nil {
			return err
		}
		mode = "range"
	case runRetryFailed:
		selected = batch.SelectFailed(a.creds.All(), a.results.LoadExisting())
		mode = "retry-failed"
	}

	if len(selected) == 0 {
		fmt.Println("No profiles to process.")
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	summary, results, err := a.orchestrator.Run(ctx, mode, selected)
	if err != nil {
		return err
	}

	fmt.Print(renderSummary(summary, results))
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	cred, ok := a.creds.ByName(args[0])
	if !ok {
		return fmt.Errorf("profile %q not found in credentials", args[0])
	}

	ctx, stop := signalContext()
	defer stop()

	a.orchestrator.Concurrency = 1
	summary, results, err := a.orchestrator.Run(ctx, "debug", []domain.Credential{cred})
	if err != nil {
		return err
	}
	fmt.Print(renderSummary(summary, results))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	profiles, err := a.gpm.Profiles(context.Background())
	if err != nil {
		return fmt.Errorf("listing GPM profiles: %w", err)
	}

	fmt.Printf("GPM OK at %s, %d profiles, %d credentials loaded\n\n",
		a.cfg.GPM.APIBase, len(profiles), a.creds.Count())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE ID\tNAME\tCREDENTIALS")
	for _, p := range profiles {
		has := "-"
		if _, ok := a.creds.ByID(p.ID); ok {
			has = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, has)
	}
	return w.Flush()
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := batch.NewScheduler(
		scheduleCron,
		a.cfg.General.CredentialsFile,
		func() error { return a.creds.Load(a.cfg.General.CredentialsFile) },
		func(ctx context.Context) error {
			summary, results, err := a.orchestrator.Run(ctx, "scheduled", batch.SelectAll(a.creds.All()))
			if err != nil {
				return err
			}
			fmt.Print(renderSummary(summary, results))
			return nil
		},
		a.logger,
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("Scheduled with %q, next run %s. Ctrl-C to stop.\n",
		scheduleCron, sched.NextRun().Format("2006-01-02 15:04"))

	if err := sched.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.journal == nil {
		return fmt.Errorf("run journal unavailable")
	}

	batches, err := a.journal.RecentBatches(historyLimit)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("No recorded batches yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tMODE\tCONCURRENCY\tPROCESSED\tERRORED\tTOTAL SHARE")
	for _, b := range batches {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.0f\n",
			b.StartedAt.Format("2006-01-02 15:04"), b.Mode, b.Concurrency,
			b.Processed, b.Errored, b.TotalShare)
	}
	return w.Flush()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
