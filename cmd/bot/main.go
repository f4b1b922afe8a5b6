package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	discordrouter "github.com/jose-valero/guild-keeper-bot/internal/adapters/discord"
	"github.com/jose-valero/guild-keeper-bot/internal/app/service"
	"github.com/jose-valero/guild-keeper-bot/internal/health"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/config"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
	"github.com/jose-valero/guild-keeper-bot/internal/observe"
)

const (
	serviceName     = "guild-keeper-bot"
	shutdownTimeout = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Métricas
	mp, shutdownMetrics, err := observe.InitProvider(serviceName)
	if err != nil {
		log.Error("metrics provider", "err", err)
		return 1
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		log.Error("metrics instruments", "err", err)
		return 1
	}

	// Backend de snapshots
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("snapshot backend", "backend", cfg.SnapshotBackend, "err", err)
		return 1
	}
	defer closeBackend()

	store := storage.New(backend, storage.WithLogger(log), storage.WithMetrics(metrics))
	if err := store.Load(ctx); err != nil {
		var le *storage.LoadError
		if errors.As(err, &le) {
			log.Error("snapshot load failed", "document", le.Document, "err", le.Err)
			// lo que sí cargó se persiste antes de salir; el documento roto no se toca
			if _, ferr := store.Flush(context.Background(), false); ferr != nil {
				log.Error("flush before exit", "err", ferr)
			}
			return le.ExitCode
		}
		log.Error("snapshot load", "err", err)
		return 1
	}
	log.Info("✅ snapshots cargados", "polls", store.Polls.Len(), "narrators", store.Narrators.Len())

	// Discord session
	auth := strings.TrimSpace(cfg.DiscordToken)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Error("discord session", "err", err)
		return 1
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates
	s.StateEnabled = true

	// Services
	platform := discordrouter.NewPlatform(s, cfg.DiscordGuild)
	recorder := discordrouter.NewRecorder(s, cfg.DiscordGuild, log)
	polls := service.NewPollService(store, platform, service.WithPollLogger(log), service.WithPollMetrics(metrics))
	narrators := service.NewNarratorService(store, platform, recorder,
		service.WithNarratorLogger(log), service.WithNarratorMetrics(metrics))
	recorder.OnSpeaking(narrators.OnSpeaking)
	scheduler := service.NewScheduler(polls, store, log, nil)
	admin := service.NewAdminService(store, polls, narrators, scheduler)

	router := discordrouter.NewRouter(s, cfg.DiscordGuild, cfg.AdminRoleIDs, polls, narrators, admin, recorder, log)
	router.Handlers()

	if err := s.Open(); err != nil {
		log.Error("discord open", "err", err)
		return 1
	}
	log.Info("✅ conectado", "user", s.State.User.Username, "user_id", s.State.User.ID)
	if err := router.Register(); err != nil {
		log.Error("registrando comandos", "err", err)
		_ = s.Close()
		return 1
	}
	log.Info("✅ comandos registrados", "guild_id", cfg.DiscordGuild)

	// HTTP: health + metrics
	mux := http.NewServeMux()
	health.New(
		health.Checker{Name: "gateway", Check: func(context.Context) error {
			if !router.Ready() {
				return errors.New("gateway not ready")
			}
			return nil
		}},
		health.Checker{Name: "snapshots", Check: func(context.Context) error { return store.LastFlushError() }},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	code := 0
	if err := g.Wait(); err != nil {
		log.Error("run", "err", err)
		code = 1
	}

	// Apagado: borrados pendientes, salir de voz, guardado forzado
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	polls.Close(sctx)
	if err := recorder.LeaveVoice(sctx); err != nil {
		log.Warn("leave voice", "err", err)
	}
	if err := scheduler.ForceSave(sctx); err != nil {
		log.Error("final save", "err", err)
		code = 1
	}
	_ = s.Close()
	log.Info("👋 apagado")
	return code
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Backend, func(), error) {
	switch cfg.SnapshotBackend {
	case config.BackendPostgres:
		repo, db, err := storage.OpenSnapshotRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("✅ DB lista y migrada")
		return repo, func() { _ = db.Close() }, nil
	default:
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return nil, nil, err
		}
		return storage.NewFileBackend(cfg.StateDir), func() {}, nil
	}
}
