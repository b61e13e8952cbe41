package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/agent"
	"github.com/example/helpdesk/internal/auth"
	"github.com/example/helpdesk/internal/config"
	"github.com/example/helpdesk/internal/db"
	"github.com/example/helpdesk/internal/goroutine"
	httpserver "github.com/example/helpdesk/internal/http"
	"github.com/example/helpdesk/internal/logger"
	"github.com/example/helpdesk/internal/markdown"
	"github.com/example/helpdesk/internal/mq"
	"github.com/example/helpdesk/internal/notify"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/rewrite"
	"github.com/example/helpdesk/internal/service"
	"github.com/example/helpdesk/internal/ticketid"
	"github.com/example/helpdesk/internal/worker"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, database, err := bootstrap()
			if err != nil {
				return err
			}
			if !skipMigrate {
				if err := db.Migrate(database); err != nil {
					return err
				}
			}
			return serve(cfg, log, database)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not migrate the schema on start-up")
	return cmd
}

func serve(cfg config.Config, log *slog.Logger, database *gorm.DB) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	seq := ticketid.New(cfg.TicketPrefix)
	users := repository.NewUserRepository(database)
	projects := repository.NewProjectRepository(database)

	webhook := notificationChannel(cfg, log)
	dispatcher := webhook
	var closers []func() error

	if cfg.MQURL != "" {
		publisher, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQTicketExchange, logger.WithComponent(log, "mq"))
		if err != nil {
			log.Warn("rabbitmq unavailable, notifying directly", "error", err)
		} else {
			closers = append(closers, publisher.Close)
			dispatcher = notify.NewQueueDispatcher(publisher)
			startRelay(ctx, cfg, log, webhook)
		}
	}

	var directory notify.Directory = notify.StoredHandles{}
	if cfg.SlackBotToken != "" {
		directory = notify.NewSlackDirectory(cfg.SlackBotToken, cfg.NotifyTimeout)
	}
	notifier := notify.New(dispatcher, directory, logger.WithComponent(log, "notify"), cfg.NotifyTimeout)

	tickets := service.NewTicketService(
		repository.NewTicketRepository(database),
		users,
		projects,
		notifier,
		markdown.NewRenderer(seq, cfg.PortalBaseURL),
		seq,
		service.TicketOptions{ScanWindow: cfg.TicketScanWindow, ConflictRetries: cfg.TicketAllocRetries},
		logger.WithComponent(log, "tickets"),
	)

	var chatAgent service.Agent
	if cfg.AgentWebhookURL != "" {
		chatAgent = agent.NewClient(cfg.AgentWebhookURL, cfg.AgentTimeout)
	}
	chat := service.NewChatService(repository.NewChatRepository(database), chatAgent, tickets, logger.WithComponent(log, "chat"))

	var rewriter httpserver.Rewriter
	if cfg.AnthropicAPIKey != "" {
		rewriter = rewrite.NewAssistant(rewrite.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}

	states, closeStates := stateStore(cfg, log)
	if closeStates != nil {
		closers = append(closers, closeStates)
	}
	google := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
	})
	if !google.Configured() {
		log.Warn("OAUTH_CLIENT_ID is not set, sign-in will fail")
	}
	authHandler := auth.NewHandler(
		google,
		states,
		auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL),
		users,
		auth.Options{
			AllowedDomains: cfg.AllowedEmailDomains,
			AfterLogin:     cfg.PortalBaseURL + "/",
			SecureCookie:   strings.HasPrefix(cfg.OAuthRedirectURL, "https://"),
		},
		logger.WithComponent(log, "auth"),
	)

	apiServer := httpserver.NewServer(httpserver.Deps{
		Tickets:  tickets,
		Chat:     chat,
		Projects: projects,
		Users:    users,
		Assets:   repository.NewAssetRepository(database),
		Rewriter: rewriter,
		Auth:     authHandler,
		Health: func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		Cache: httpserver.CachePolicy{MaxAge: cfg.CacheMaxAge, StaleWindow: cfg.CacheStaleWindow},
		Log:   logger.WithComponent(log, "http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPPort, "ticket_prefix", seq.Prefix())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	notifier.Wait()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close resource", "error", err)
		}
	}
	log.Info("bye")
	return nil
}

// notificationChannel is where announcements finally land: the webhook when
// configured, otherwise the log.
func notificationChannel(cfg config.Config, log *slog.Logger) notify.Dispatcher {
	if cfg.NotifyWebhookURL != "" {
		return notify.NewWebhookDispatcher(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}
	return notify.NewLogDispatcher(logger.WithComponent(log, "notify"))
}

func startRelay(ctx context.Context, cfg config.Config, log *slog.Logger, channel notify.Dispatcher) {
	relayLog := logger.WithComponent(log, "relay")
	consumer, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQTicketExchange, cfg.MQTicketQueue, notify.EventTicketsCreated, relayLog)
	if err != nil {
		log.Warn("notification relay disabled", "error", err)
		return
	}
	relay := worker.NewNotificationRelay(consumer, channel, relayLog)
	goroutine.SafeGo(relayLog, "notification_relay", func() {
		if err := relay.Run(ctx); err != nil {
			relayLog.Error("notification relay stopped", "error", err)
		}
	})
}

func stateStore(cfg config.Config, log *slog.Logger) (auth.StateStore, func() error) {
	const ttl = 10 * time.Minute
	if cfg.RedisAddr == "" {
		return auth.NewMemoryStateStore(ttl), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, keeping oauth state in memory", "error", err)
		_ = client.Close()
		return auth.NewMemoryStateStore(ttl), nil
	}
	return auth.NewRedisStateStore(client, "helpdesk:oauth:state:", ttl), client.Close
}
