package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// migrationLockID genera el ID del pg_advisory_lock que serializa las
// migraciones entre procesos.
func migrationLockID() int64 {
	h := sha256.Sum256([]byte("ramify_migration"))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// RunMigrationsWithLock ejecuta los *_up.sql del dir (orden
// lexicográfico) bajo advisory lock y devuelve cuántos aplicó.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool, dir string) (int, error) {
	lockID := migrationLockID()
	log := logger.Named("pg.migrate")

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var acquired bool
	if err := pool.QueryRow(lockCtx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("pg: acquire migration lock: %w", err)
	}
	if !acquired {
		log.Info("migration lock held elsewhere, waiting")
		if err := pool.QueryRow(lockCtx, "SELECT pg_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
			return 0, fmt.Errorf("pg: wait migration lock: %w", err)
		}
	}
	defer func() {
		if _, err := pool.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			log.Warn("release migration lock failed", logger.Err(err))
		}
	}()

	return runMigrations(ctx, pool, dir)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) (int, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "migrations/postgres"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var applied int
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return applied, err
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("pg: exec %s: %w", f, err)
		}
		applied++
	}
	return applied, nil
}

// RunMigrationsDown ejecuta los *_down.sql en orden inverso.
func RunMigrationsDown(ctx context.Context, pool *pgxpool.Pool, dir string) (int, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "migrations/postgres"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_down.sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var applied int
	for i := len(files) - 1; i >= 0; i-- {
		b, err := os.ReadFile(files[i])
		if err != nil {
			return applied, err
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("pg: exec %s: %w", files[i], err)
		}
		applied++
	}
	return applied, nil
}
