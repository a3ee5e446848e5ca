package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/config"
	"github.com/zhouzirui/lifesync/backend/internal/handler"
	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
	"github.com/zhouzirui/lifesync/backend/internal/model/finance"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/model/task"
	"github.com/zhouzirui/lifesync/backend/internal/service/ai"
	"github.com/zhouzirui/lifesync/backend/internal/service/assistant"
	"github.com/zhouzirui/lifesync/backend/internal/service/briefing"
	"github.com/zhouzirui/lifesync/backend/internal/service/session"
	"github.com/zhouzirui/lifesync/backend/internal/storage/sqlite"
)

type stores struct {
	chats    chat.Store
	tasks    task.Store
	finances finance.Store
	notes    note.Store
	close    func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.New()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	configureLogger(log, cfg.Log)

	st, err := openStores(ctx, cfg.Store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer func() {
		if err := st.close(); err != nil {
			log.WithError(err).Warn("failed to close storage")
		}
	}()

	aggregator := briefing.NewAggregator(st.tasks, st.finances, st.notes,
		briefing.WithSourceTimeout(cfg.Store.IOTimeout),
		briefing.WithLogger(log),
	)

	sessions := session.NewMemoryStore(
		session.WithValidator(chat.ValidTurns),
		session.WithLogger(log),
	)
	sweeper := session.NewSweeper(sessions, cfg.Session.SweepInterval, cfg.Session.IdleThreshold, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Initialize assistant service
	var assistantSvc *assistant.Service
	completer, err := newCompleter(ctx, cfg.AI, log)
	if err != nil {
		log.WithError(err).Warn("continuing without AI functionality - 请检查模型相关环境变量")
	} else {
		assistantSvc, err = assistant.NewService(assistant.Deps{
			Sessions:  sessions,
			Chats:     st.chats,
			Notes:     st.notes,
			Briefer:   aggregator,
			Completer: completer,
			Log:       log,
		}, assistant.Config{
			Generation:        generationConfig(cfg.AI),
			CompletionTimeout: cfg.AI.CompletionTimeout,
			StoreTimeout:      cfg.Store.IOTimeout,
			SerializeOwner:    cfg.Session.SerializeOwner,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize assistant service")
		}
		defer assistantSvc.Wait()
		log.WithField("provider", cfg.AI.Provider).Info("assistant service initialized")
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, trusting the X-User-ID header (development only)")
	}

	router := handler.NewRouter(assistantSvc, cfg.Auth, log)

	startServer(ctx, cfg.Server, router, log)
}

func configureLogger(log *logrus.Logger, cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
}

func openStores(ctx context.Context, cfg config.StoreConfig, log logrus.FieldLogger) (stores, error) {
	if cfg.SQLitePath == "" {
		log.Warn("SQLITE_PATH not set, chats and planner data live in memory only")
		return stores{
			chats:    chat.NewMemoryStore(),
			tasks:    task.NewMemoryStore(nil),
			finances: finance.NewMemoryStore(),
			notes:    note.NewMemoryStore(nil),
			close:    func() error { return nil },
		}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := sqlite.Open(openCtx, cfg.SQLitePath)
	if err != nil {
		return stores{}, err
	}
	log.WithField("path", cfg.SQLitePath).Info("sqlite storage opened")
	return stores{
		chats:    db.Chats(),
		tasks:    db.Tasks(),
		finances: db.Finances(),
		notes:    db.Notes(),
		close:    db.Close,
	}, nil
}

func newCompleter(ctx context.Context, cfg config.AIConfig, log logrus.FieldLogger) (ai.Completer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("model credentials are not configured")
	}
	if cfg.Provider == config.ProviderGemini {
		return ai.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return ai.NewEinoCompleter(ctx, chatModel, log)
}

func generationConfig(cfg config.AIConfig) ai.GenerationConfig {
	return ai.GenerationConfig{
		Temperature: float32(cfg.Temperature),
		TopP:        float32(cfg.TopP),
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log logrus.FieldLogger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Info("LifeSync backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Error("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
