package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ldi/backvet/internal/config"
	"github.com/ldi/backvet/internal/mcp"
	"github.com/ldi/backvet/internal/report"
	"github.com/ldi/backvet/internal/server"
	"github.com/ldi/backvet/internal/store"
	"github.com/ldi/backvet/internal/tracker"
	"github.com/ldi/backvet/internal/ui"
	"github.com/ldi/backvet/internal/validate"
	"github.com/ldi/backvet/pkg/models"
)

// backlogSource is the slice of the tracker client the validation pipeline
// needs; tests substitute a fake.
type backlogSource interface {
	GetBacklog(ctx context.Context, project, team string) ([]int, error)
	GetWorkItem(ctx context.Context, id int) (*models.BacklogItem, error)
	ItemURL(project string, id int) string
}

func main() {
	fs := flag.NewFlagSet("backvet", flag.ExitOnError)
	cfg, args, err := config.Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.SetOutput(os.Stderr)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	var command string
	if len(args) == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "validate":
		err = runValidate(cfg, args)
	case "watch":
		err = runWatch(cfg, args)
	case "history":
		err = runHistory(cfg, args)
	case "status":
		err = runStatus(cfg, args)
	case "web":
		err = runWeb(cfg, args)
	case "mcp":
		err = runMCP(cfg, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// requireConfig enforces the required parameter quad for commands that talk
// to the tracking service. A missing parameter is a warning and exit 1, not a
// hard error.
func requireConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Warn(err.Error())
		os.Exit(1)
	}
}

// fetchAndValidate is the whole pipeline: backlog list, per-item detail in
// rank order, sequence build, ordering validation. Any fetch failure aborts.
func fetchAndValidate(ctx context.Context, src backlogSource, project, team string) (flagged, all []*models.BacklogItem, err error) {
	log.Info("fetching backlog", "project", project, "team", team)
	ids, err := src.GetBacklog(ctx, project, team)
	if err != nil {
		return nil, nil, err
	}
	log.Info("backlog fetched", "items", len(ids))

	items := make([]*models.BacklogItem, 0, len(ids))
	for i, id := range ids {
		item, err := src.GetWorkItem(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("work item fetched", "id", id, "rank", i+1, "predecessors", item.Predecessors.Len())
		items = append(items, item)
	}

	items, err = validate.BuildSequence(items)
	if err != nil {
		return nil, nil, err
	}

	flagged, all = validate.Validate(items)
	return flagged, all, nil
}

func runValidate(cfg *config.Config, args []string) error {
	validateFlags := flag.NewFlagSet("validate", flag.ContinueOnError)
	record := validateFlags.Bool("record", false, "Record the run in the history database")
	if err := validateFlags.Parse(args); err != nil {
		return err
	}

	requireConfig(cfg)

	client := tracker.New(cfg.OrgURL, cfg.Token, cfg.Timeout())
	ctx := context.Background()

	flagged, all, err := fetchAndValidate(ctx, client, cfg.Project, cfg.Team)
	if err != nil {
		return err
	}

	report.PrintSummary(os.Stdout, len(all), len(flagged))
	report.PrintViolations(os.Stdout, flagged, func(id int) string {
		return client.ItemURL(cfg.Project, id)
	})

	path, err := report.ExportCSV(all)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d items to %s\n", len(all), path)

	if *record {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Init(ctx); err != nil {
			return err
		}
		st.EnableAutoSnapshot(cfg.SnapshotPath)

		run := &models.Run{Project: cfg.Project, Team: cfg.Team, ViolationCount: len(flagged)}
		if err := st.RecordRun(ctx, run, all); err != nil {
			return err
		}
		log.Info("run recorded", "run_id", run.ID)
	}

	return nil
}

func runWatch(cfg *config.Config, args []string) error {
	watchFlags := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := watchFlags.Duration("interval", 5*time.Minute, "Time between validation passes")
	if err := watchFlags.Parse(args); err != nil {
		return err
	}

	requireConfig(cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Init(ctx); err != nil {
		return err
	}
	st.EnableAutoSnapshot(cfg.SnapshotPath)

	client := tracker.New(cfg.OrgURL, cfg.Token, cfg.Timeout())

	pass := func() error {
		flagged, all, err := fetchAndValidate(ctx, client, cfg.Project, cfg.Team)
		if err != nil {
			return err
		}
		run := &models.Run{Project: cfg.Project, Team: cfg.Team, ViolationCount: len(flagged)}
		if err := st.RecordRun(ctx, run, all); err != nil {
			return err
		}
		if len(flagged) > 0 {
			log.Warn("backlog order violations", "run_id", run.ID, "flagged", len(flagged), "items", len(all))
		} else {
			log.Info("backlog order consistent", "run_id", run.ID, "items", len(all))
		}
		return nil
	}

	if err := pass(); err != nil {
		return err
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := pass(); err != nil {
				return err
			}
		}
	}
}

func runHistory(cfg *config.Config, args []string) error {
	historyFlags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := historyFlags.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	if err := historyFlags.Parse(args); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		return err
	}

	runs, err := st.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-20s %-15s %-8s %-10s\n", "RUN", "WHEN", "TEAM", "ITEMS", "FLAGGED")
	fmt.Println("-------------------------------------------------------------------------------------------")
	for _, r := range runs {
		fmt.Printf("%-36s %-20s %-15s %-8d %-10d\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Team, r.ItemCount, r.ViolationCount)
	}
	return nil
}

func runStatus(cfg *config.Config, args []string) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		return err
	}

	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		return err
	}

	fmt.Println("Backvet Run History")
	fmt.Println("===================")
	fmt.Printf("Recorded Runs: %d\n", len(runs))

	latest, err := st.LatestRun(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		fmt.Println("No runs recorded yet")
		return nil
	}

	fmt.Printf("\nLatest Run: %s\n", latest.ID)
	fmt.Printf("  Team:      %s / %s\n", latest.Project, latest.Team)
	fmt.Printf("  When:      %s\n", latest.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Items:     %d\n", latest.ItemCount)
	fmt.Printf("  Flagged:   %d\n", latest.ViolationCount)

	if latest.ViolationCount > 0 {
		flagged, err := st.ListViolatingItems(ctx, latest.ID)
		if err != nil {
			return err
		}
		fmt.Println("\nOut-of-order items:")
		for _, item := range flagged {
			fmt.Printf("  - rank %d, item %d: %s\n", item.Rank, item.ID, item.Title)
		}
	}

	return nil
}

func runWeb(cfg *config.Config, args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	port := webFlags.String("port", "8000", "Port to listen on")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Init(ctx); err != nil {
		return err
	}

	srv := server.NewServer(st)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("report server listening", "url", fmt.Sprintf("http://localhost:%s", *port))
	if err := srv.Start(fmt.Sprintf(":%s", *port)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runMCP(cfg *config.Config, args []string) error {
	requireConfig(cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		return err
	}
	st.EnableAutoSnapshot(cfg.SnapshotPath)

	client := tracker.New(cfg.OrgURL, cfg.Token, cfg.Timeout())

	runFn := func(ctx context.Context, project, team string) (*models.Run, []*models.BacklogItem, error) {
		flagged, all, err := fetchAndValidate(ctx, client, project, team)
		if err != nil {
			return nil, nil, err
		}
		run := &models.Run{Project: project, Team: team, ViolationCount: len(flagged)}
		if err := st.RecordRun(ctx, run, all); err != nil {
			return nil, nil, err
		}
		return run, all, nil
	}

	s := mcp.NewServer(st, runFn, cfg.Project, cfg.Team)
	return mcp.Serve(s)
}
