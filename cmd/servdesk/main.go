// Command servdesk runs the helpdesk API server and its maintenance CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/servdesk-io/servdesk/internal/api"
	"github.com/servdesk-io/servdesk/internal/audit"
	"github.com/servdesk-io/servdesk/internal/auth"
	"github.com/servdesk-io/servdesk/internal/config"
	"github.com/servdesk-io/servdesk/internal/customers"
	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/ledger"
	"github.com/servdesk-io/servdesk/internal/mailparse"
	"github.com/servdesk-io/servdesk/internal/maintenance"
	"github.com/servdesk-io/servdesk/internal/middleware"
	"github.com/servdesk-io/servdesk/internal/notifications"
	"github.com/servdesk-io/servdesk/internal/reconcile"
	"github.com/servdesk-io/servdesk/internal/repository"
	"github.com/servdesk-io/servdesk/internal/ticketnumber"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "servdesk",
		Short: "ServDesk helpdesk server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(serveCmd(), migrateCmd(), recountCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			os.Setenv("DB_DRIVER", cfg.Database.Driver)
			db, err := database.Open(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Println("migrations applied")
			return nil
		},
	}
}

func recountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute per-customer ticket counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			os.Setenv("DB_DRIVER", cfg.Database.Driver)
			db, err := database.Open(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			updated, err := repository.NewCustomerRepository(db).RecountTicketTotals(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("recounted ticket totals for %d customers", updated)
			return nil
		},
	}
}

func runServe() error {
	cfg := config.Get()
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmsgprefix)

	// The placeholder converter and the dialect-specific SQL paths read the
	// driver from the environment.
	os.Setenv("DB_DRIVER", cfg.Database.Driver)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	ticketRepo := repository.NewTicketRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	eventRepo := repository.NewInboundEventRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditor := audit.NewRecorder(auditRepo, logger)
	resolver := customers.NewResolver(customerRepo)

	var cache *ledger.Cache
	if cfg.Redis.Enabled {
		cache = ledger.NewCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}
	ldg := ledger.New(eventRepo, ledger.WithLogger(logger), ledger.WithCache(cache))

	generator, err := ticketnumber.Resolve(cfg.Ticket.NumberGenerator, cfg.Ticket.NumberPrefix, cfg.Ticket.MinCounterSize, nil)
	if err != nil {
		return err
	}
	counterStore := ticketnumber.NewDBStore(db)
	subjects := mailparse.NewSubjectParser(cfg.Ticket.NumberPrefix, cfg.Ticket.SubjectMaxLen)

	provider := notifications.NewSMTPProvider(&cfg.Notifications)
	dispatcher := notifications.NewDispatcher(provider, cfg.Notifications.AdminEmails, logger)

	engine := reconcile.New(ldg, resolver, customerRepo, ticketRepo, messageRepo,
		subjects, generator, counterStore,
		reconcile.WithLogger(logger),
		reconcile.WithNotifier(dispatcher),
		reconcile.WithAuditor(auditor),
	)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.App.Debug {
		router.Use(gin.Logger())
	}

	api.RegisterRoutes(router, api.Handlers{
		Inbound:  api.NewInboundHandler(engine, cfg.Inbound.ForwardSecret, cfg.Inbound.WebhookSecret, logger),
		Tickets:  api.NewTicketHandler(ticketRepo, messageRepo, customerRepo, auditor, logger),
		Tracking: api.NewTrackingHandler(ticketRepo, messageRepo, logger),
		Auth:     middleware.NewAuthMiddleware(jwtManager),
		DB:       db,
	})

	scheduler := maintenance.NewScheduler(customerRepo, logger)
	if err := scheduler.Start(cfg.Maintenance.RecountSchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("server: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Printf("server: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
