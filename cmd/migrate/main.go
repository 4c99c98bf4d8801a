package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"

	"ops-backend/internal/db"
	"ops-backend/internal/logger"
)

// Applies every migrations/*.sql file in filename order. Files are written
// to be re-runnable (IF NOT EXISTS, ON CONFLICT DO NOTHING), so there is no
// version table.
func main() {
	_ = godotenv.Load()

	if err := logger.Setup(logger.FromEnv()); err != nil {
		panic("logger setup: " + err.Error())
	}
	log := logger.WithComponent("migrate")

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list migration files")
	}
	if len(files) == 0 {
		log.Fatal().Str("dir", dir).Msg("no migration files found")
	}
	sort.Strings(files)

	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read migration")
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("migration failed")
		}
		log.Info().Str("file", file).Msg("applied")
	}
	log.Info().Int("count", len(files)).Msg("migrations complete")
}
