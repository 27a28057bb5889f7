package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/aopview/internal/datasource"
	"github.com/vanderheijden86/aopview/pkg/config"
	"github.com/vanderheijden86/aopview/pkg/export"
	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/remote"
	"github.com/vanderheijden86/aopview/pkg/store"
	"github.com/vanderheijden86/aopview/pkg/tablesync"
	"github.com/vanderheijden86/aopview/pkg/ui"
	"github.com/vanderheijden86/aopview/pkg/version"
	"github.com/vanderheijden86/aopview/pkg/watcher"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Config file path (default: XDG config dir)")
	networkPath := flag.String("network", "", "Network JSON file (overrides discovery)")
	dataDir := flag.String("data-dir", "", "Directory with network exports and cache")
	serviceURL := flag.String("service", "", "Prediction service base URL")
	threshold := flag.Float64("threshold", 0, "Prediction score threshold (overrides config)")
	snapshotPath := flag.String("snapshot", "", "Render a snapshot to this path and exit (svg or png)")
	noCache := flag.Bool("no-cache", false, "Skip refreshing the SQLite element cache")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: av [options]")
		fmt.Println("\nA TUI viewer for Adverse Outcome Pathway networks.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("av %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *serviceURL != "" {
		cfg.ServiceURL = *serviceURL
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *networkPath != "" {
		cfg.Network = *networkPath
	}
	if *threshold > 0 {
		cfg.Prediction.Threshold = *threshold
	}
	if cfg.DataDir == "" {
		cfg.DataDir, _ = os.Getwd()
	}

	elements, sourcePath, err := loadNetwork(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading network: %v\n", err)
		fmt.Fprintln(os.Stderr, "Point av at a network export with --network or --data-dir.")
		os.Exit(1)
	}
	if len(elements) == 0 {
		fmt.Println("Network is empty, nothing to view.")
		os.Exit(0)
	}

	// One-shot snapshot mode renders and exits without starting the TUI.
	if *snapshotPath != "" {
		if err := renderSnapshot(*snapshotPath, elements); err != nil {
			fmt.Fprintf(os.Stderr, "Snapshot failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot written to %s\n", *snapshotPath)
		os.Exit(0)
	}

	st := store.New()
	report := st.UpsertElements(elements)
	if report.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: skipped %d malformed elements: %v\n",
			report.Skipped, report.SkippedIDs)
	}

	// Report cache drift before the refresh below overwrites the evidence.
	if !*noCache && *networkPath == "" {
		if diff, derr := datasource.VerifyCacheConsistency(cfg.DataDir); derr == nil && diff != nil && diff.HasInconsistencies() {
			fmt.Fprintf(os.Stderr, "Warning: element cache out of date, refreshing.\n%s", diff.Summary())
		}
	}

	// Refresh the derived cache so the viewer starts fast next time even if
	// the JSON export is gone.
	if !*noCache {
		if err := datasource.WriteCache(cfg.DataDir, st.Elements(nil)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache refresh failed: %v\n", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var prog *tea.Program
	sync := tablesync.New(st,
		tablesync.WithDebounce(cfg.Debounce()),
		tablesync.WithTransition(cfg.Transition()),
		tablesync.WithOnRefresh(func(rows tablesync.Rows) {
			if prog != nil {
				prog.Send(ui.RowsRefreshedMsg{Rows: rows})
			}
		}),
	)

	client := remote.NewClient(cfg.ServiceURL)

	m := ui.NewModel(st, sync, client, cfg).
		WithSnapshotDir(snapshotDir())

	// Live reload only works for a concrete file on disk, not the cache.
	if sourcePath != "" && filepath.Ext(sourcePath) == ".json" {
		w, werr := watcher.NewWatcher(sourcePath)
		if werr == nil && w.Start() == nil {
			defer w.Stop()
			m = m.WithWatcher(w, sourcePath)
		}
	}

	prog = newTUIProgram(m)
	sync.Start(ctx)
	if err := runTUIProgram(prog); err != nil {
		fmt.Printf("Error running viewer: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// loadNetwork returns the element set plus the concrete file it came from
// (empty for the SQLite cache).
func loadNetwork(cfg config.Config) ([]model.Element, string, error) {
	if cfg.Network != "" {
		els, err := datasource.LoadElementsFromFile(cfg.Network)
		return els, cfg.Network, err
	}
	els, src, err := datasource.LoadElements(cfg.DataDir)
	if err != nil {
		return nil, "", err
	}
	path := ""
	if src.Type == datasource.SourceTypeJSON {
		path = src.Path
	}
	return els, path, nil
}

func renderSnapshot(path string, elements []model.Element) error {
	// Visible elements only, unless the export carries no visibility flags
	// at all, in which case render everything.
	var visible []model.Element
	for _, el := range elements {
		if el.Visible {
			visible = append(visible, el)
		}
	}
	if len(visible) == 0 {
		visible = elements
	}
	return export.SaveSnapshot(export.SnapshotOptions{
		Path:     path,
		Title:    "AOP Network",
		Elements: visible,
	})
}

func snapshotDir() string {
	if dir := config.StateDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	cwd, _ := os.Getwd()
	return cwd
}

func newTUIProgram(m ui.Model) *tea.Program {
	return tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
}

func runTUIProgram(p *tea.Program) error {
	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set AV_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("AV_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
