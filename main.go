package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"sharkemon/internal/analysis"
	"sharkemon/internal/capture"
	"sharkemon/internal/catalog"
	"sharkemon/internal/config"
	"sharkemon/internal/discovery"
	"sharkemon/internal/logging"
	"sharkemon/internal/metrics"
	"sharkemon/internal/models"
	"sharkemon/internal/reporting"
	"sharkemon/internal/tui"
)

type options struct {
	interfaceName  string
	configPath     string
	catalogPath    string
	metricsAddr    string
	headless       bool
	listInterfaces bool
	reset          bool
	yes            bool
	report         bool
}

func main() {
	var opts options
	flag.StringVar(&opts.interfaceName, "i", "", "Network interface to capture from (e.g., eth0, wlan0)")
	flag.StringVar(&opts.configPath, "config", "", "Config file (default $SHARKEMON_HOME/config.toml)")
	flag.StringVar(&opts.catalogPath, "catalog", "", "Descriptor file replacing the built-in catalog")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g., 127.0.0.1:9465)")
	flag.BoolVar(&opts.headless, "headless", false, "Log discoveries instead of showing the catalog view")
	flag.BoolVar(&opts.listInterfaces, "list-interfaces", false, "List capture interfaces and exit")
	flag.BoolVar(&opts.reset, "reset", false, "Forget every discovery and exit")
	flag.BoolVar(&opts.yes, "yes", false, "Do not ask for confirmation with -reset")
	flag.BoolVar(&opts.report, "report", false, "Write an HTML collection report to the current directory and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "sharkemon: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	paths, err := config.DefaultPaths()
	if err != nil {
		return err
	}
	if opts.configPath != "" {
		paths.Config = opts.configPath
	}

	cfg, err := config.Load(paths.Config)
	if err != nil {
		return err
	}
	if opts.interfaceName != "" {
		cfg.NetworkInterface = opts.interfaceName
	}
	if opts.catalogPath != "" {
		cfg.CatalogPath = opts.catalogPath
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	interactive := !opts.headless && !opts.listInterfaces && !opts.reset && !opts.report
	logOpts := logging.Options{Level: cfg.LogLevel}
	if interactive {
		logOpts.File = paths.Log
	}
	logger, closer, err := logging.Configure(logOpts)
	if err != nil {
		return err
	}
	defer closer.Close()

	if opts.listInterfaces {
		return printInterfaces()
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	ledger, err := discovery.Open(discovery.NewFileStore(paths.Ledger),
		discovery.WithRetry(cfg.Retry),
		discovery.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	switch {
	case opts.reset:
		return resetLedger(ledger, opts.yes)
	case opts.report:
		name, err := reporting.GenerateCollectionReport(cat, ledger.Snapshot(), ".", time.Now())
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", name)
		return nil
	}

	pick := capture.DefaultInterface
	if !opts.headless {
		pick = pickInterface
	}
	iface, err := chooseInterface(&cfg, paths.Config, pick, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = capturePipeline(ctx, pipeline{
		cfg:         cfg,
		iface:       iface,
		catalog:     cat,
		ledger:      ledger,
		logger:      logger,
		interactive: interactive,
	})
	if err != nil {
		logger.Error().Err(err).Msg("capture stopped")
	}
	return err
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.CatalogPath, cfg.ConflictPolicy)
}

func printInterfaces() error {
	ifaces, err := capture.ListInterfaces()
	if err != nil {
		return err
	}
	for _, iface := range ifaces {
		addrs := make([]string, len(iface.Addresses))
		for i, a := range iface.Addresses {
			addrs[i] = a.String()
		}
		flags := ""
		if iface.Loopback {
			flags = " (loopback)"
		}
		fmt.Printf("%-16s %s%s\n", iface.Name, strings.Join(addrs, ", "), flags)
	}
	return nil
}

func resetLedger(ledger *discovery.Ledger, yes bool) error {
	if !yes {
		ok, err := tui.ConfirmReset(ledger.Len())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}
	if err := ledger.Reset(); err != nil {
		return err
	}
	fmt.Println("All discoveries forgotten.")
	return nil
}

// chooseInterface resolves the capture interface. A newly picked one is
// written to the config file on its own, so one-off flag overrides held
// in cfg are never persisted.
func chooseInterface(cfg *config.Config, path string, pick func() (string, error), logger zerolog.Logger) (string, error) {
	if cfg.NetworkInterface != "" {
		return cfg.NetworkInterface, nil
	}

	iface, err := pick()
	if err != nil {
		return "", fmt.Errorf("choose interface: %w", err)
	}

	cfg.NetworkInterface = iface
	if err := config.SaveInterface(path, iface); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("could not save interface choice")
	}
	return iface, nil
}

// pickInterface asks the user to choose among the capture interfaces.
func pickInterface() (string, error) {
	ifaces, err := capture.ListInterfaces()
	if err != nil {
		return "", err
	}
	return tui.PickInterface(ifaces)
}

type pipeline struct {
	cfg         config.Config
	iface       string
	catalog     *catalog.Catalog
	ledger      *discovery.Ledger
	logger      zerolog.Logger
	interactive bool
}

func capturePipeline(ctx context.Context, p pipeline) error {
	local, err := capture.Resolver{Logger: &p.logger}.Resolve(ctx)
	if err != nil {
		return err
	}

	stats := analysis.NewStats()
	m := metrics.New()
	m.Discoveries.Set(float64(p.ledger.Len()))
	p.ledger.Subscribe(m)

	captureCfg := p.cfg.Capture
	captureCfg.Interface = p.iface
	session, err := capture.Open(captureCfg, local,
		capture.WithLogger(p.logger),
		capture.WithObserver(frameObservers{stats, m}),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, p.cfg.MetricsAddr, m.Registry(), p.logger); err != nil {
				p.logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	matcher := analysis.NewMatcher(p.catalog, recordMatch(p.ledger, stats, m))

	if !p.interactive {
		return sessionResult(session.Run(ctx, matcher.Consume))
	}

	events := discovery.NewChannelObserver(64).OnDrop(m.ObserverDrops.Inc)
	p.ledger.Subscribe(events)

	program := tea.NewProgram(
		tui.NewCollectionModel(p.catalog, p.ledger, stats, events.Events(), p.iface),
		tea.WithAltScreen(),
	)

	done := make(chan error, 1)
	go func() {
		err := sessionResult(session.Run(ctx, matcher.Consume))
		done <- err
		program.Send(tui.CaptureDoneMsg{Err: err})
	}()

	final, err := program.Run()
	cancel()
	captureErr := <-done
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if model, ok := final.(tui.CollectionModel); ok && model.Err() != nil {
		return model.Err()
	}
	return captureErr
}

// sighter is the write side of the discovery ledger.
type sighter interface {
	Sight(catalog.Descriptor) (discovery.Event, error)
}

// recordMatch feeds a match into the session stats and the ledger. A
// ledger that cannot be saved ends the capture.
func recordMatch(ledger sighter, stats *analysis.Stats, m *metrics.Metrics) analysis.MatchFunc {
	return func(d catalog.Descriptor) error {
		stats.ObserveMatch(d)
		if _, err := ledger.Sight(d); err != nil {
			if errors.Is(err, discovery.ErrPersist) {
				m.PersistFailures.Inc()
				return capture.Fatal(err)
			}
			return err
		}
		return nil
	}
}

// sessionResult treats cancellation as a clean stop.
func sessionResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type frameObservers []capture.FrameObserver

func (fo frameObservers) ObserveFrame(o models.FrameOutcome) {
	for _, obs := range fo {
		obs.ObserveFrame(o)
	}
}
