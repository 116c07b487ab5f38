// Command ddsparticipantd hosts a single DomainParticipant as a long-running
// process: it wires configuration, structured logging, UDP transport, the
// real-time Runtime, the participant's tick driver, its façade mailbox, a
// discovery-trace recorder, and the optional debug introspection feed
// together, then serves until an interrupt or terminate signal arrives.
// Grounded on the teacher's main() (config load -> logger -> component
// wiring -> signal-driven graceful shutdown) adapted from a WebSocket
// game-state broker to a DDS-RTPS participant host.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ddscore/internal/auth"
	"ddscore/internal/config"
	"ddscore/internal/facade"
	"ddscore/internal/introspect"
	"ddscore/internal/logging"
	"ddscore/internal/participant"
	"ddscore/internal/runtime"
	"ddscore/internal/trace"
	"ddscore/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := transport.NewUDPTransport(transport.Options{Port: cfg.DefaultUnicastPort()})
	if err != nil {
		logger.Fatal("failed to open UDP transport", logging.Error(err))
	}
	defer tr.Close()

	rt := runtime.NewReal(ctx)
	defer rt.Close()

	factory := participant.GetInstance()
	p, err := factory.CreateParticipant(cfg, tr, rt, logger, nil)
	if err != nil {
		logger.Fatal("failed to create domain participant", logging.Error(err))
	}
	defer func() {
		if err := factory.DeleteParticipant(p); err != nil {
			logger.Warn("participant delete on shutdown reported an error", logging.Error(err))
		}
	}()

	p.Run(ctx, cfg.HeartbeatPeriod)
	logger.Info("domain participant started",
		logging.Int("domain_id", cfg.DomainID),
		logging.Int("participant_id", cfg.ParticipantID))

	mailbox := facade.NewMailbox(p, 0)
	rt.Spawn(func(ctx context.Context) { mailbox.Run(ctx) })

	recorder := traceRecorder(cfg, logger)
	if recorder != nil {
		cleaner := trace.NewCleaner(traceDir(cfg), trace.RetentionPolicy{MaxBundles: 50, MaxAge: 7 * 24 * time.Hour}, logger)
		rt.Spawn(func(ctx context.Context) { cleaner.Run(ctx, time.Hour) })
		rt.Spawn(func(ctx context.Context) { rollRecorderPeriodically(ctx, recorder, cfg, logger) })
	}

	var introspectServer *http.Server
	if cfg.IntrospectAddr != "" {
		var verifier *auth.HMACTokenVerifier
		if cfg.IntrospectToken != "" {
			verifier, err = auth.NewHMACTokenVerifier(cfg.IntrospectToken, 5*time.Second)
			if err != nil {
				logger.Fatal("failed to configure introspect authenticator", logging.Error(err))
			}
		}
		hub := introspect.NewHub(verifier, logger.With(logging.String("component", "introspect")))
		rt.Spawn(func(ctx context.Context) { broadcastDiscoveryState(ctx, hub, p, 2*time.Second) })

		mux := http.NewServeMux()
		mux.Handle("/debug/feed", hub)
		introspectServer = &http.Server{Addr: cfg.IntrospectAddr, Handler: mux}
		go func() {
			logger.Info("introspect feed listening", logging.String("address", cfg.IntrospectAddr))
			if err := introspectServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("introspect server terminated", logging.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, draining participant")
	if introspectServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = introspectServer.Shutdown(shutdownCtx)
		cancel()
	}
	if recorder != nil {
		if _, err := recorder.Roll(cfg.DomainTag); err != nil {
			logger.Warn("final trace roll failed", logging.Error(err))
		}
	}
}

func traceDir(cfg *config.Config) string {
	dir := os.Getenv("DDS_TRACE_DIR")
	if dir != "" {
		return dir
	}
	return "storage/traces"
}

func traceRecorder(cfg *config.Config, logger *logging.Logger) *trace.Recorder {
	dir := traceDir(cfg)
	if os.Getenv("DDS_TRACE_DISABLE") == "true" {
		return nil
	}
	logger.Info("discovery trace recording enabled", logging.String("directory", dir))
	return trace.NewRecorder(dir, nil)
}

func rollRecorderPeriodically(ctx context.Context, recorder *trace.Recorder, cfg *config.Config, logger *logging.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := recorder.Roll(cfg.DomainTag); err != nil {
				logger.Warn("periodic trace roll failed", logging.Error(err))
			}
		}
	}
}

func broadcastDiscoveryState(ctx context.Context, hub *introspect.Hub, p *participant.Participant, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.Broadcast(introspect.Snapshot{
				Type:      "participants",
				Timestamp: p.CurrentTime(),
				Payload:   p.GetDiscoveredParticipants(),
			})
			hub.Broadcast(introspect.Snapshot{
				Type:      "publications",
				Timestamp: p.CurrentTime(),
				Payload:   p.GetDiscoveredPublications(),
			})
			hub.Broadcast(introspect.Snapshot{
				Type:      "subscriptions",
				Timestamp: p.CurrentTime(),
				Payload:   p.GetDiscoveredSubscriptions(),
			})
		}
	}
}
