package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hireloop/interview-gateway/internal/dotenv"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	gatewayserver "github.com/hireloop/interview-gateway/pkg/gateway/server"
	sessionstore "github.com/hireloop/interview-gateway/pkg/gateway/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildDeps    func(context.Context, config.Config, *slog.Logger) (gatewayserver.Deps, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		buildDeps:  buildDeps,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildDeps constructs the backing stores and collaborators from config.
// Empty DSNs fall back to in-memory stores so the gateway runs standalone in
// development.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (gatewayserver.Deps, func(), error) {
	var deps gatewayserver.Deps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			cleanup()
			return gatewayserver.Deps{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.Store = pg
		closers = append(closers, pg.Close)
	} else {
		logger.Warn("no postgres dsn configured, using in-memory interview store")
		deps.Store = store.NewMemory()
	}

	if cfg.RedisURL != "" {
		rs, err := sessionstore.NewRedis(cfg.RedisURL, cfg.SessionChunkTTL, cfg.SessionMetaTTL)
		if err != nil {
			cleanup()
			return gatewayserver.Deps{}, nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			cleanup()
			_ = rs.Close()
			return gatewayserver.Deps{}, nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Sessions = rs
		closers = append(closers, func() { _ = rs.Close() })
	} else {
		logger.Warn("no redis url configured, using in-memory session store")
		deps.Sessions = sessionstore.NewMemory(cfg.SessionChunkTTL, cfg.SessionMetaTTL)
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			cleanup()
			return gatewayserver.Deps{}, nil, fmt.Errorf("init gemini: %w", err)
		}
		deps.Generator = gen
	} else {
		logger.Warn("no gemini api key configured, question generation and scoring disabled")
	}

	if cfg.DeepgramAPIKey != "" {
		deps.STT = stt.NewDeepgram(cfg.DeepgramAPIKey)
	} else {
		logger.Warn("no deepgram api key configured, transcription disabled")
	}

	if cfg.ElevenLabsAPIKey != "" {
		deps.TTS = tts.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
	} else {
		logger.Warn("no elevenlabs api key configured, speech synthesis disabled")
	}

	return deps, cleanup, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, gd gatewayDeps) error {
	if gd.loadConfig == nil || gd.buildDeps == nil {
		return errors.New("missing gateway dependencies")
	}
	if gd.signalNotify == nil || gd.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := gd.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deps, cleanup, err := gd.buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	gw := gatewayserver.New(cfg, deps, logger)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "auth_mode", cfg.AuthMode)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	gd.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer gd.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	gw.NotifyLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitLiveSessions(waitCtx) {
		gw.CancelLiveSessions()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, gd gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "interviewd: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, gd); err != nil {
		fmt.Fprintf(stderr, "interviewd: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
