package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/ramify/internal/cache"
	"github.com/dropDatabas3/ramify/internal/config"
	"github.com/dropDatabas3/ramify/internal/controlplane"
	branchesctrl "github.com/dropDatabas3/ramify/internal/http/controllers/branches"
	healthctrl "github.com/dropDatabas3/ramify/internal/http/controllers/health"
	recordsctrl "github.com/dropDatabas3/ramify/internal/http/controllers/records"
	mw "github.com/dropDatabas3/ramify/internal/http/middlewares"
	"github.com/dropDatabas3/ramify/internal/http/router"
	"github.com/dropDatabas3/ramify/internal/http/server"
	"github.com/dropDatabas3/ramify/internal/metrics"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
	"github.com/dropDatabas3/ramify/internal/rate"
	"github.com/dropDatabas3/ramify/internal/record"
	"github.com/dropDatabas3/ramify/internal/store/branchdial"
	"github.com/dropDatabas3/ramify/internal/store/pg"
)

var version = "dev"

func main() {
	// .env opcional, para desarrollo local
	_ = godotenv.Load()

	var cfgPath string
	var migrationsDir string

	root := &cobra.Command{
		Use:   "ramify",
		Short: "Backend de árboles de decisión con branching de datos",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "ruta del config YAML")
	root.PersistentFlags().StringVar(&migrationsDir, "migrations", "migrations/postgres", "directorio de migraciones SQL")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath, migrationsDir)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Aplica las migraciones del store primario",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "up"
			if len(args) == 1 {
				dir = args[0]
			}
			return runMigrate(cfgPath, migrationsDir, dir)
		},
	}

	branches := &cobra.Command{
		Use:   "branches",
		Short: "Operaciones admin contra el control plane",
	}
	branches.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lista las branches del cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBranches(cfgPath, func(ctx context.Context, prov controlplane.Provisioner) error {
				bs, err := prov.ListBranches(ctx)
				if err != nil {
					return err
				}
				for _, b := range bs {
					fmt.Printf("%s\t%s\t%s\t%s\n", b.ID, b.DisplayName, b.State, b.Endpoint)
				}
				return nil
			})
		},
	})
	branches.AddCommand(&cobra.Command{
		Use:   "delete <branch-id>",
		Short: "Borra una branch del cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBranches(cfgPath, func(ctx context.Context, prov controlplane.Provisioner) error {
				return prov.DeleteBranch(ctx, args[0])
			})
		},
	})

	root.AddCommand(serve, migrate, branches)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       "info",
		ServiceName: "ramify",
		Version:     version,
	})
}

// buildProvisioner arma el cliente de control plane según config.
// Retorna nil si el branching está deshabilitado.
func buildProvisioner(cfg *config.Config, c cache.Client) (controlplane.Provisioner, error) {
	if !cfg.Branching.Enabled {
		return nil, nil
	}
	dc, err := controlplane.NewDigestClient(
		cfg.Branching.APIBaseURL,
		cfg.Branching.PublicKey,
		cfg.Branching.PrivateKey,
		config.Dur(cfg.Branching.Timeout),
	)
	if err != nil {
		return nil, err
	}
	prov, err := controlplane.NewBranchProvisioner(dc, cfg.Branching.ClusterID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return controlplane.NewCachedProvisioner(prov, c, 0), nil
	}
	return prov, nil
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	window := config.Dur(cfg.Rate.Window)
	if cfg.Rate.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, "", cfg.Rate.MaxRequests, window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
}

func runServe(cfgPath, migrationsDir string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	initLogger(cfg)
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	if err := metrics.Register(nil); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Flags.Migrate {
		applied, err := pg.RunMigrationsWithLock(ctx, db.Pool(), migrationsDir)
		if err != nil {
			return err
		}
		log.Info("migrations applied", logger.Count(applied))
	}

	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	prov, err := buildProvisioner(cfg, cacheClient)
	if err != nil {
		return err
	}

	dialer := branchdial.New(branchdial.Config{
		User:        cfg.Branching.DataUser,
		Password:    cfg.Branching.DataPassword,
		Database:    cfg.Branching.Database,
		Port:        cfg.Branching.DataPort,
		SSLMode:     cfg.Branching.SSLMode,
		PoolTTL:     config.Dur(cfg.Branching.PoolTTL),
		DialTimeout: config.Dur(cfg.Branching.OpTimeout),
	})
	defer dialer.Close()

	store := record.NewStore(
		pg.NewRecordRepo(db),
		dialer,
		prov,
		record.WithBranchTimeout(config.Dur(cfg.Branching.OpTimeout)),
	)

	var rateLimit mw.Middleware
	if limiter := buildLimiter(cfg); limiter != nil {
		rateLimit = mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   limiter,
			Whitelist: []string{"/healthz", "/readyz", "/metrics"},
		})
	}

	handler := router.New(router.Deps{
		Records:  recordsctrl.NewController(store),
		Branches: branchesctrl.NewController(prov),
		Health:   healthctrl.NewController(version, db, cacheClient),
		Session: mw.WithSession(mw.SessionConfig{
			Secret: cfg.Session.Secret,
			TTL:    config.Dur(cfg.Session.TTL),
		}),
		RateLimit:   rateLimit,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	log.Info("starting",
		logger.String("env", cfg.App.Env),
		logger.String("version", version),
		logger.Any("branching", cfg.Branching.Enabled),
	)
	return server.New(cfg.Server.Addr, handler).Run(ctx)
}

func runMigrate(cfgPath, migrationsDir, direction string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	var applied int
	switch direction {
	case "up":
		applied, err = pg.RunMigrationsWithLock(ctx, db.Pool(), migrationsDir)
	case "down":
		applied, err = pg.RunMigrationsDown(ctx, db.Pool(), migrationsDir)
	default:
		return fmt.Errorf("unknown direction %q (up|down)", direction)
	}
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration(s)\n", applied)
	return nil
}

func runBranches(cfgPath string, fn func(context.Context, controlplane.Provisioner) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	prov, err := buildProvisioner(cfg, nil)
	if err != nil {
		return err
	}
	if prov == nil {
		return fmt.Errorf("branching disabled in config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, prov)
}
