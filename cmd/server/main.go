package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"intake/internal/applicant"
	applicanthandler "intake/internal/applicant/handler"
	"intake/internal/audit"
	audithandler "intake/internal/audit/handler"
	"intake/internal/auth"
	authhandler "intake/internal/auth/handler"
	"intake/internal/crypto/blindindex"
	"intake/internal/crypto/fieldcrypt"
	"intake/internal/crypto/keyring"
	httpapi "intake/internal/http"
	"intake/internal/platform/config"
	"intake/internal/platform/httpserver"
	"intake/internal/platform/logger"
	"intake/internal/platform/metrics"
	platformredis "intake/internal/platform/redis"
	"intake/internal/queue"
	"intake/internal/staff"
	staffhandler "intake/internal/staff/handler"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	"intake/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "intake: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New()

	keys, err := keyring.Load(keyring.Config{
		MasterKeyHex:   cfg.MasterKeyHex,
		Passphrase:     cfg.MasterPassphrase,
		KDFSalt:        cfg.KDFSalt,
		BlindIndexSalt: cfg.BlindIndexSalt,
	})
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}
	defer keys.Zero()

	codec, err := fieldcrypt.New(keys)
	if err != nil {
		return fmt.Errorf("init field encryption: %w", err)
	}
	indexer := blindindex.New(keys)

	m := metrics.New()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		db             *sql.DB
		applicantStore applicant.Store
		staffStore     staff.Store
		auditStore     audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		applicantStore = applicant.NewPostgres(db)
		staffStore = staff.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		applicantStore = applicant.NewInMemoryStore()
		staffStore = staff.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var sessions auth.SessionStore
	if redisClient != nil {
		defer redisClient.Close()
		sessions = auth.NewRedisSessionStore(redisClient)
		log.Info("using redis session store")
	} else {
		sessions = auth.NewInMemorySessionStore()
		log.Warn("no redis configured, using in-memory session store")
	}

	recorder := audit.NewRecorder(auditStore)
	var auditWorker *audit.Worker
	if len(cfg.KafkaBrokers) > 0 {
		publisher := audit.NewPublisher(log)
		auditWorker, err = audit.NewWorker(cfg.KafkaBrokers, cfg.KafkaAuditTopic, publisher, log)
		if err != nil {
			return fmt.Errorf("init audit mirror: %w", err)
		}
		recorder.WithMirror(publisher)
		log.Info("audit mirror enabled", "topic", cfg.KafkaAuditTopic)
	}

	staffSvc := staff.NewService(staffStore, recorder,
		staff.WithLogger(log),
		staff.WithBcryptCost(cfg.BcryptCost),
	)
	applicantOpts := []applicant.Option{
		applicant.WithLogger(log),
		applicant.WithMetrics(m),
	}
	if db != nil {
		applicantOpts = append(applicantOpts, applicant.WithTransactor(
			func(ctx context.Context, fn func(ctx context.Context) error) error {
				return tx.InTx(ctx, db, fn)
			},
		))
	}
	applicantSvc := applicant.NewService(applicantStore, codec, indexer, recorder, applicantOpts...)
	queueSvc := queue.NewService(applicantStore, rosterFrom(staffStore), recorder,
		cfg.StaleAssignmentThreshold,
		queue.WithLogger(log),
		queue.WithMetrics(m),
	)
	applicantSvc.SetDecisionHook(queueSvc)

	tokens := auth.NewTokenManager([]byte(cfg.JWTSigningKey), cfg.TokenTTL)
	authSvc := auth.NewService(staffSvc, tokens, sessions, recorder,
		auth.WithLogger(log),
		auth.WithMetrics(m),
		auth.WithLoginHook(queueSvc),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := staffSvc.Bootstrap(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword); err != nil {
		log.Warn("bootstrap admin not created", "error", err)
	}

	router := httpapi.New(httpapi.Deps{
		Logger:     log,
		Validator:  tokens,
		Revocation: sessions,
		Applicants: applicanthandler.New(applicantSvc, queueSvc, log),
		Auth:       authhandler.New(authSvc, tokens, log),
		Staff:      staffhandler.New(staffSvc, log),
		Audit:      audithandler.New(recorder, log),
		Health: func() error {
			if db != nil {
				if err := db.Ping(); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(context.Background())
			}
			return nil
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting intake server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		queueSvc.RunReclaimLoop(ctx, cfg.ReclaimInterval)
		return nil
	})
	if auditWorker != nil {
		g.Go(func() error {
			return auditWorker.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// rosterFrom exposes the slice of staff accounts the queue needs for
// validating manual assignment targets.
func rosterFrom(store staff.Store) queue.StaffDirectory {
	return queue.DirectoryFunc(func(ctx context.Context, staffID id.StaffID) (*queue.RosterEntry, error) {
		account, err := store.FindByID(ctx, staffID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, sentinel.ErrNotFound
			}
			return nil, err
		}
		return &queue.RosterEntry{
			ID:       account.ID,
			Username: account.Username,
			Role:     account.Role,
			Active:   account.Active,
		}, nil
	})
}
