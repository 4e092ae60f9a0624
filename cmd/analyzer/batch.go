package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/config"
	"github.com/andresuchdata/inventory-analyzer/internal/drive"
	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
	"github.com/andresuchdata/inventory-analyzer/internal/pipeline"
	"github.com/andresuchdata/inventory-analyzer/internal/pipeline/restock"
	"github.com/andresuchdata/inventory-analyzer/internal/storage"
)

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Analyze every export in a directory and write enriched CSVs per snapshot date",
		Flags: []cli.Flag{
			newDBURLFlag(false),
			&cli.StringFlag{
				Name:    "input-dir",
				Usage:   "Directory containing export files",
				Value:   "./data/uploads/restock/raw",
				EnvVars: []string{"BATCH_INPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory for consolidated CSVs",
				Value:   "./data/output/restock",
				EnvVars: []string{"BATCH_OUTPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "intermediate-dir",
				Usage:   "Directory for per-file quality reports",
				Value:   "./data/intermediate/restock",
				EnvVars: []string{"BATCH_INTERMEDIATE_DIR"},
			},
			&cli.StringFlag{
				Name:    "input-date-format",
				Usage:   "Date format used in filenames to extract snapshot date (Go layout)",
				Value:   "20060102",
				EnvVars: []string{"BATCH_INPUT_DATE_FORMAT"},
			},
			&cli.BoolFlag{
				Name:    "persist-debug-layers",
				Usage:   "Write a quality report per input file",
				EnvVars: []string{"BATCH_PERSIST_DEBUG_LAYERS"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent workers",
				Value:   runtime.NumCPU(),
				EnvVars: []string{"PIPELINE_WORKERS"},
			},
			&cli.StringFlag{
				Name:    "drive-folder-id",
				Usage:   "Download exports from this Google Drive folder into input-dir first",
				EnvVars: []string{"BATCH_DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:    "bucket-prefix",
				Usage:   "Download exports below this object storage prefix into input-dir first",
				EnvVars: []string{"BATCH_BUCKET_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "upload-prefix",
				Usage:   "Upload consolidated CSVs to object storage below this prefix",
				EnvVars: []string{"BATCH_UPLOAD_PREFIX"},
			},
			&cli.BoolFlag{
				Name:  "retry",
				Usage: "Retry failed files of earlier runs after processing",
			},
		},
		Action: runBatch,
	}
}

func runBatch(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()
	inputDir := c.String("input-dir")

	files, err := collectInputs(c, cfg, inputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Info().Str("dir", inputDir).Msg("no export files found; nothing to process")
		return nil
	}

	tracker, closeTracker, err := openTracker(ctx, c.String("db-url"))
	if err != nil {
		return err
	}
	defer closeTracker()

	onFlush, err := uploadOnFlush(cfg, c.String("upload-prefix"))
	if err != nil {
		return err
	}

	p := restock.New(restock.Config{
		InputDateFormat:    c.String("input-date-format"),
		IntermediateDir:    c.String("intermediate-dir"),
		PersistDebugLayers: c.Bool("persist-debug-layers"),
		Params:             cfg.Analysis,
	})

	pipeCfg := pipeline.DefaultPipelineConfig(restock.Name)
	pipeCfg.OutputDir = c.String("output-dir")
	pipeCfg.IntermediateDir = c.String("intermediate-dir")
	pipeCfg.WorkerCount = c.Int("workers")

	recorder := metrics.New()
	orchestrator := pipeline.NewOrchestrator(tracker, pipeCfg, recorder, onFlush)

	start := time.Now()
	runs, runErr := orchestrator.Run(ctx, p, files)
	if c.Bool("retry") {
		if err := orchestrator.Retry(ctx, p); err != nil {
			log.Warn().Err(err).Msg("retry failed")
		}
	}

	printRuns(c, runs)
	log.Info().Int("files", len(files)).Dur("took", time.Since(start)).Msg("batch finished")
	return runErr
}

// collectInputs optionally mirrors Drive or object storage into dir, then lists it.
func collectInputs(c *cli.Context, cfg *config.Config, dir string) ([]string, error) {
	ctx := c.Context

	if folderID := c.String("drive-folder-id"); folderID != "" {
		creds := cfg.Drive.CredentialsJSON
		if strings.TrimSpace(creds) == "" {
			return nil, fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON env is required")
		}
		driveSvc, err := drive.NewService(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		log.Info().Str("folder", folderID).Str("dir", dir).Msg("downloading exports from Drive")
		if _, err := drive.NewDownloader(driveSvc).DownloadFolder(ctx, drive.DownloadOptions{
			FolderID:    folderID,
			DownloadDir: dir,
		}); err != nil {
			return nil, fmt.Errorf("failed to download files from Drive: %w", err)
		}
	}

	if prefix := c.String("bucket-prefix"); prefix != "" {
		store, err := objectStore(cfg)
		if err != nil {
			return nil, err
		}
		downloader, err := storage.NewDownloader(store, dir)
		if err != nil {
			return nil, err
		}
		log.Info().Str("prefix", prefix).Str("dir", dir).Msg("downloading exports from object storage")
		paths, err := downloader.Download(ctx, prefix, "")
		if err != nil {
			return nil, err
		}
		return paths, nil
	}

	return restock.CollectFiles(dir)
}

func objectStore(cfg *config.Config) (storage.ObjectStorage, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("STORAGE_DRIVER must be set to use object storage")
	}
	return store, nil
}

func uploadOnFlush(cfg *config.Config, prefix string) (pipeline.FlushFunc, error) {
	if prefix == "" {
		return nil, nil
	}
	store, err := objectStore(cfg)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, csvPath string) error {
		key, err := storage.UploadFile(ctx, store, prefix, csvPath)
		if err != nil {
			return err
		}
		log.Info().Str("key", key).Msg("uploaded consolidated CSV")
		return nil
	}, nil
}

func openTracker(ctx context.Context, dbURL string) (pipeline.RunTracker, func(), error) {
	if dbURL == "" {
		return pipeline.NewMemoryTracker(), func() {}, nil
	}
	db, err := pipeline.OpenDB(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}
	repo := pipeline.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}

func printRuns(c *cli.Context, runs []*pipeline.PipelineRun) {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATUS\tFILES\tROWS\tTOOK\tERROR")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			run.Date.Format("2006-01-02"), run.Status,
			run.ProcessedFiles, run.TotalFiles, run.TotalRows,
			run.Duration().Round(time.Millisecond), run.ErrorMessage)
	}
	tw.Flush()
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent batch runs",
		Flags: []cli.Flag{
			newDBURLFlag(true),
			&cli.IntFlag{
				Name:  "days",
				Usage: "How many days back to list",
				Value: 7,
			},
		},
		Action: func(c *cli.Context) error {
			tracker, closeTracker, err := openTracker(c.Context, c.String("db-url"))
			if err != nil {
				return err
			}
			defer closeTracker()

			since := time.Now().AddDate(0, 0, -c.Int("days"))
			runs, err := tracker.ListRuns(c.Context, since)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			printRuns(c, runs)
			return nil
		},
	}
}
