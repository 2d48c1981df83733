package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit"
)

var (
	recognizeCodebook string
	recognizeModel    string
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <feature-file>...",
	Short: "Classify individual feature files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("codebook", recognizeCodebook); err != nil {
			return err
		}
		if err := requireFlag("model", recognizeModel); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rec, err := vqdigit.NewRecognizer(recognizeCodebook, recognizeModel,
			vqdigit.WithFeatureConfig(cfg.Feature),
			vqdigit.WithDecoderConfig(cfg.Decoder),
			vqdigit.WithMaxSequenceLength(cfg.MaxSequenceLength),
		)
		if err != nil {
			return err
		}

		out := make([]recognition, 0, len(args))
		for _, path := range args {
			res, err := rec.RecognizeFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out = append(out, newRecognition(path, res))
		}
		return writeReport(cmd.OutOrStdout(), formatOutput, out, func() string {
			return renderRecognitions(out)
		})
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeCodebook, "codebook", "", "codebook file")
	recognizeCmd.Flags().StringVar(&recognizeModel, "model", "", "trained model file")
	rootCmd.AddCommand(recognizeCmd)
}
