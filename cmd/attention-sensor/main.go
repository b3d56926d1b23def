// Command attention-sensor simulates learner attention and publishes samples
// and engagement changes to MQTT.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/capture"
	"github.com/sweeney/attention-sensor/internal/config"
	"github.com/sweeney/attention-sensor/internal/mqtt"
	"github.com/sweeney/attention-sensor/internal/recommend"
	"github.com/sweeney/attention-sensor/internal/status"
	"github.com/sweeney/attention-sensor/internal/store"
	"github.com/sweeney/attention-sensor/internal/web"
)

// sampleQueue is the hand-off buffer between the simulator observer and the
// run loop.
const sampleQueue = 64

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	broker      string
	httpAddr    string
	capture     string
	userID      string
	target      string
	debounce    time.Duration
	heartbeat   time.Duration
	interval    time.Duration
	verbose     bool
	printSample bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "attention-sensor",
		Short:        "Simulate learner attention and publish it to MQTT",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := newLogger(f.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			return run(cmd.Context(), cfg, f.printSample, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file")
	fl.StringVar(&f.broker, "broker", "", "MQTT broker address")
	fl.StringVar(&f.httpAddr, "http", "", "HTTP status address")
	fl.StringVar(&f.capture, "capture", "", "Capture source: none, gpio or camera")
	fl.StringVar(&f.userID, "user", "", "Learner id stamped on published records")
	fl.StringVar(&f.target, "target", "", "Target region as x,y,width,height")
	fl.DurationVar(&f.debounce, "debounce", 0, "Engagement debounce duration")
	fl.DurationVar(&f.heartbeat, "heartbeat", 0, "Heartbeat interval")
	fl.DurationVar(&f.interval, "interval", 0, "Sample interval")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging")
	fl.BoolVar(&f.printSample, "print-sample", false, "Print one sample and exit")
	return cmd
}

// loadConfig reads the config file and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("broker") {
		cfg.Broker = f.broker
	}
	if changed("http") {
		cfg.HTTPAddr = f.httpAddr
	}
	if changed("capture") {
		cfg.Capture = f.capture
	}
	if changed("user") {
		cfg.UserID = f.userID
	}
	if changed("debounce") {
		cfg.Debounce = f.debounce
	}
	if changed("heartbeat") {
		cfg.Heartbeat = f.heartbeat
	}
	if changed("interval") {
		cfg.Simulator.Interval = f.interval
	}
	if changed("target") {
		r, err := parseTarget(f.target)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Target = r
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseTarget parses "x,y,width,height". An empty string means no target.
func parseTarget(s string) (*attention.Rect, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("target %q: want x,y,width,height", s)
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return nil, fmt.Errorf("target %q: width and height must be positive", s)
	}
	return &attention.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, printSample bool, logger *zap.Logger) error {
	source, err := capture.New(cfg.Capture)
	if err != nil {
		return fmt.Errorf("init capture: %w", err)
	}

	sim := attention.New(source,
		attention.WithConfig(cfg.SimulatorConfig()),
		attention.WithLogger(logger.Named("attention")))
	defer sim.Close()

	if printSample {
		return printOneSample(ctx, sim, cfg.Target)
	}

	id := mqtt.Identity{UserID: cfg.UserID, SessionID: uuid.NewString()}
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, id, logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	captureName := "none"
	if source != nil {
		captureName = source.Name()
	}
	sc := cfg.SimulatorConfig()
	tracker := status.NewTracker(time.Now(), status.Config{
		IntervalMs:  sc.Interval.Milliseconds(),
		HistorySize: sc.HistorySize,
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		Capture:     captureName,
	})
	tracker.SetIdentity(id.UserID, id.SessionID)
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	}

	events := store.New(cfg.StoreCapacity)
	srv := web.New(cfg.HTTPAddr, web.Deps{
		Tracker:     tracker,
		Simulator:   sim,
		Store:       events,
		Recommender: newRecommender(ctx, cfg.Recommend, logger.Named("recommend")),
		Logger:      logger.Named("web"),
		Target:      cfg.Target,
	})

	samples := make(chan attention.Sample, sampleQueue)
	sub := sim.Subscribe(handoff(samples))
	defer sub.Unsubscribe()

	if err := sim.Start(ctx, cfg.Target, nil); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logger.Info("started",
		zap.String("session_id", id.SessionID),
		zap.String("user_id", id.UserID),
		zap.Duration("interval", sc.Interval),
		zap.Duration("debounce", cfg.Debounce),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.String("broker", cfg.Broker),
		zap.String("http", cfg.HTTPAddr),
		zap.String("capture", captureName))

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		defer sim.Stop()
		l := &loop{
			samples:    samples,
			publisher:  publisher,
			mqttStatus: publisher,
			tracker:    tracker,
			counters:   sim,
			events:     events,
			userID:     id.UserID,
			debounce:   cfg.Debounce,
			heartbeat:  cfg.Heartbeat,
			thresholds: cfg.Thresholds,
			now:        time.Now,
			logger:     logger,
		}
		return l.run(gctx, sigCh)
	})
	return g.Wait()
}

// handoff returns an observer that queues samples for the run loop. A full
// queue drops the sample and reports it as an observer failure.
func handoff(samples chan<- attention.Sample) attention.Observer {
	return func(s attention.Sample) error {
		select {
		case samples <- s:
			return nil
		default:
			return errors.New("sample queue full")
		}
	}
}

func newRecommender(ctx context.Context, rc config.RecommendConfig, logger *zap.Logger) *recommend.Service {
	var gen recommend.Generator
	if rc.APIKey == "" {
		logger.Info("no GenAI API key, serving fallback recommendations")
	} else if g, err := recommend.NewGenAIGenerator(ctx, rc.APIKey, rc.Model); err != nil {
		logger.Warn("genai unavailable, serving fallback recommendations", zap.Error(err))
	} else {
		logger.Info("genai recommendations enabled", zap.String("model", g.Model()))
		gen = g
	}
	return recommend.NewService(gen, rc.RateLimit, logger)
}

// printOneSample starts tracking, waits for the first tick and prints it.
func printOneSample(ctx context.Context, sim *attention.Simulator, target *attention.Rect) error {
	got := make(chan attention.Sample, 1)
	sub := sim.Subscribe(handoff(got))
	defer sub.Unsubscribe()

	if err := sim.Start(ctx, target, nil); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	defer sim.Stop()

	select {
	case s := <-got:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case <-ctx.Done():
		return ctx.Err()
	}
}
