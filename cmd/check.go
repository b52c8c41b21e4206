package main

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/check-match/internal/check"
	"github.com/sells-group/check-match/internal/model"
)

var checkOutput string

var checkCmd = &cobra.Command{
	Use:   "check <image>",
	Short: "Extract fields from one check image and match the payor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cfg, "check", nil)
		if err != nil {
			return err
		}

		payload, err := processFile(cmd.Context(), env.Processor, args[0])
		if err != nil {
			return err
		}
		return writePayload(cmd.OutOrStdout(), payload, checkOutput)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(checkCmd)
}

// imageProcessor is the part of check.Processor the file commands use.
type imageProcessor interface {
	ProcessImage(ctx context.Context, image []byte, mediaType string) (*model.Payload, error)
}

var _ imageProcessor = (*check.Processor)(nil)

// processFile reads one image from disk and runs it through the pipeline.
func processFile(ctx context.Context, p imageProcessor, path string) (*model.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	zap.L().Debug("processing check image",
		zap.String("file", path),
		zap.Int("bytes", len(image)),
	)
	return p.ProcessImage(ctx, image, mediaTypeFor(path))
}

// mediaTypeFor guesses the image type from the file extension. The extractor
// sniffs the bytes when the guess is empty or wrong.
func mediaTypeFor(path string) string {
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
}
