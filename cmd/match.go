package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/check-match/internal/check"
	"github.com/sells-group/check-match/internal/model"
)

var (
	matchOutput string
	matchNames  []string
)

var matchCmd = &cobra.Command{
	Use:   "match <payor text>",
	Short: "Search Bloomerang for donors matching a payor line",
	Long:  "Runs payor segmentation and donor matching without the vision model. Words after the command are joined into the payor text.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cfg, "match", nil)
		if err != nil {
			return err
		}

		payload, err := env.Processor.ProcessExtraction(cmd.Context(), payorExtraction(strings.Join(args, " "), matchNames))
		if err != nil {
			return err
		}
		return writePayload(cmd.OutOrStdout(), payload, matchOutput)
	},
}

func init() {
	matchCmd.Flags().StringVarP(&matchOutput, "output", "o", "json", "output format: json or yaml")
	matchCmd.Flags().StringSliceVar(&matchNames, "names", nil, "explicit payor names, as the extraction step would return them")
	rootCmd.AddCommand(matchCmd)
}

// payorExtraction builds the extraction a model would have returned for a
// check whose only readable field is the payor line.
func payorExtraction(text string, names []string) model.Extraction {
	m := map[string]any{model.FieldPayor: text}
	if len(names) > 0 {
		list := make([]any, len(names))
		for i, n := range names {
			list[i] = n
		}
		m["payorNames"] = list
	}
	return check.ExtractionFromMap(m)
}
