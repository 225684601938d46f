// Command sync-range replays exported source payloads day by day through the reconciliation engine.
//
//	sync-range -from 2025-11-01 -to 2025-11-07 [-source LOGISTICS] -dir ./exports
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"returns-reconciliation-service/internal/config"
	"returns-reconciliation-service/internal/logger"
	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/service"
	"returns-reconciliation-service/internal/source"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	from := flag.String("from", "", "first day, YYYY-MM-DD")
	to := flag.String("to", "", "last day, YYYY-MM-DD (defaults to -from)")
	only := flag.String("source", "", "MARKETPLACE or LOGISTICS (default: both)")
	dir := flag.String("dir", "./exports", "directory holding <SOURCE>/<YYYY-MM-DD>.json files")
	noLock := flag.Bool("no-lock", false, "skip the redis sync lock")
	flag.Parse()

	days, err := dayRange(*from, *to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		return 2
	}
	sources, err := sourcesFor(*only)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg := config.Load()
	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenPostgres(ctx, repository.DatabaseConfig{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		LogLevel:     cfg.LogLevel,
	}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := repository.Migrate(db, log); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	var lock service.RunLock
	if !*noLock {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		lock = repository.NewRedisSyncLock(rdb, cfg.SyncLockTTL)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	journal := repository.NewMongoJournal(mongoClient.Database(cfg.MongoDBName))

	engine := service.NewEngine(service.NewStoreRunner(repository.NewStore(db)), log.Named("engine"))
	coordinator := service.NewCoordinator(source.DefaultRegistry(), engine, lock, journal, log.Named("ingest"))
	fetcher := repository.FileFetcher{Dir: *dir}

	exit := 0
	for _, day := range days {
		for _, src := range sources {
			run, err := coordinator.Sync(ctx, fetcher, src, day)
			if errors.Is(err, service.ErrSyncInProgress) {
				log.Warn("window already syncing, skipped", zap.String("source", string(src)), zap.Time("day", day))
				continue
			}
			if err != nil {
				log.Error("sync failed", zap.String("source", string(src)), zap.Time("day", day), zap.Error(err))
				exit = 1
				continue
			}
			if run.Failed > 0 {
				exit = 1
			}
			fmt.Printf("%s %s total=%d processed=%d skipped=%d failed=%d linked=%d\n",
				run.Date, run.Source, run.Total, run.Processed, run.Skipped, run.Failed, run.Linked)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return exit
}

// dayRange lists every day from..to inclusive.
func dayRange(from, to string) ([]time.Time, error) {
	if from == "" {
		return nil, errors.New("-from is required")
	}
	if to == "" {
		to = from
	}
	start, err := time.Parse(service.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid -from: %w", err)
	}
	end, err := time.Parse(service.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid -to: %w", err)
	}
	if end.Before(start) {
		return nil, errors.New("-to is before -from")
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

func sourcesFor(only string) ([]model.Source, error) {
	if only == "" {
		return []model.Source{model.SourceMarketplace, model.SourceLogistics}, nil
	}
	src := model.Source(only)
	if _, err := source.DefaultRegistry().Lookup(src); err != nil {
		return nil, err
	}
	return []model.Source{src}, nil
}
