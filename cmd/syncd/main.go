package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FireBox/config"
	"FireBox/internal/syncd/api"
	"FireBox/internal/syncd/engine"
	"FireBox/internal/syncd/localdb"
	"FireBox/internal/syncd/scheduler"
	"FireBox/internal/syncd/watcher"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "firebox-syncd",
		Usage: "FireBox sync client",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Watch the sync dir and keep it in sync with the server",
				Action: runDaemon,
			},
			{
				Name:   "scan",
				Usage:  "Upload every local change once and exit",
				Action: runScan,
			},
			{
				Name:   "sync",
				Usage:  "Pull remote changes once and exit",
				Action: runSyncOnce,
			},
			{
				Name:   "status",
				Usage:  "Show tracked files and the sync cursor",
				Action: runStatus,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup builds the client stack shared by every command.
func setup(ctx context.Context) (*engine.Engine, *localdb.DB, error) {
	config.InitConfig()
	cfg := config.AppConfig

	db, err := localdb.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, nil, err
	}

	client := api.New(cfg.ServerURL, cfg.DeviceID, cfg.DeviceSecret, cfg.RequestTimeout, cfg.MaxRetries)
	if err := client.Login(ctx); err != nil {
		// First run on this device: enroll, then fall back to login if
		// the server already knows the ID.
		if rerr := client.Register(ctx, cfg.DeviceName); rerr != nil {
			if lerr := client.Login(ctx); lerr != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("device auth failed: %w", lerr)
			}
		}
	}

	eng := engine.New(client, db, engine.Options{
		SyncDir:             cfg.SyncDir,
		CacheDir:            cfg.ChunkCacheDir,
		ChunkSize:           cfg.ChunkSize,
		UploadConcurrency:   cfg.UploadConcurrency,
		DownloadConcurrency: cfg.DownloadConcurrency,
	})
	return eng, db, nil
}

func runDaemon(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := os.MkdirAll(config.AppConfig.SyncDir, 0o755); err != nil {
		return err
	}

	// Catch up on anything that changed while the daemon was down.
	uploadAll(ctx, eng)

	w, err := watcher.New(config.AppConfig.SyncDir)
	if err != nil {
		return err
	}
	go w.Run(ctx)

	sched := scheduler.New(config.AppConfig.SyncInterval, func(ctx context.Context) error {
		stats, err := eng.RunSyncRound(ctx)
		if err != nil {
			return err
		}
		if !stats.UpToDate {
			log.Printf("sync round: applied=%d renamed=%d unchanged=%d downloaded=%d",
				stats.Applied, stats.Renamed, stats.Unchanged, stats.Downloaded)
		}
		eng.PruneChunkCache()
		return nil
	})
	go sched.Run(ctx)

	log.Printf("firebox-syncd watching %s", config.AppConfig.SyncDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events:
			uploadOne(ctx, eng, ev.AbsPath)
		}
	}
}

func runScan(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	uploadAll(ctx, eng)
	return nil
}

func runSyncOnce(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := eng.RunSyncRound(ctx)
	if err != nil {
		return err
	}
	if stats.UpToDate {
		fmt.Println("up to date")
	} else {
		fmt.Printf("applied=%d renamed=%d unchanged=%d downloaded=%d\n",
			stats.Applied, stats.Renamed, stats.Unchanged, stats.Downloaded)
	}
	return nil
}

func runStatus(c *cli.Context) error {
	config.InitConfig()
	db, err := localdb.Open(config.AppConfig.LocalDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cursor, err := db.LastSyncTime()
	if err != nil {
		return err
	}
	if cursor == nil {
		fmt.Println("cursor: never synced")
	} else {
		fmt.Printf("cursor: %s\n", *cursor)
	}

	files, err := db.ListFiles()
	if err != nil {
		return err
	}
	fmt.Printf("tracked files: %d\n", len(files))
	for _, f := range files {
		fmt.Printf("  %s  %d bytes  %s\n", f.FilePath, f.Size, f.FileHash)
	}
	return nil
}

func uploadAll(ctx context.Context, eng *engine.Engine) {
	err := watcher.Scan(config.AppConfig.SyncDir, func(absPath string) error {
		uploadOne(ctx, eng, absPath)
		return ctx.Err()
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("scan failed: %v", err)
	}
}

func uploadOne(ctx context.Context, eng *engine.Engine, absPath string) {
	relPath, err := eng.RelPath(absPath)
	if err != nil {
		log.Printf("skip %s: %v", absPath, err)
		return
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		if err := eng.ForgetFile(relPath); err != nil && !errors.Is(err, engine.ErrUploadInFlight) {
			log.Printf("forget %s: %v", relPath, err)
		}
		return
	}
	result, err := eng.UploadFile(ctx, relPath)
	if err != nil {
		if errors.Is(err, engine.ErrUploadInFlight) {
			return
		}
		log.Printf("upload %s failed: %v", relPath, err)
		return
	}
	if result.Skipped {
		return
	}
	log.Printf("uploaded %s: parts=%d deduped=%d", relPath, result.Uploaded+result.Deduped, result.Deduped)
}
