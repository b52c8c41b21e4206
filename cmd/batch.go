package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/internal/review"
)

var batchOut string

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Process every check image in a directory into a review workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, "batch", nil)
		if err != nil {
			return err
		}

		files, err := listImages(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			zap.L().Info("no check images found", zap.String("dir", args[0]))
			return nil
		}

		entries := processBatch(ctx, files, cfg.Batch.MaxConcurrentChecks, func(ctx context.Context, path string) (*model.Payload, error) {
			return processFile(ctx, env.Processor, path)
		})
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "batch interrupted")
		}

		if err := review.Save(batchOut, entries); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d checks to %s\n", len(entries), batchOut)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOut, "out", "review.xlsx", "review workbook path")
	rootCmd.AddCommand(batchCmd)
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// listImages returns the supported image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// processFunc runs the pipeline for one image file.
type processFunc func(ctx context.Context, path string) (*model.Payload, error)

// processBatch runs process over files with at most concurrency in flight.
// Entries come back in file order; a failed check becomes an entry with its
// error and the rest carry on.
func processBatch(ctx context.Context, files []string, concurrency int, process processFunc) []review.Entry {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("checks", len(files)),
		zap.Int("concurrency", concurrency),
	)

	entries := make([]review.Entry, len(files))
	var succeeded, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			checkID := uuid.NewString()
			log := zap.L().With(
				zap.String("check_id", checkID),
				zap.String("file", filepath.Base(path)),
			)

			entry := review.Entry{CheckID: checkID, File: filepath.Base(path)}
			payload, err := process(ctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("check failed", zap.Error(err))
				entry.Err = err
			} else {
				succeeded.Add(1)
				log.Info("check complete",
					zap.Int("candidates", len(payload.Candidates)),
					zap.Int("searches", len(payload.SearchLog)),
				)
				entry.Payload = payload
			}
			entries[i] = entry
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return entries
}
