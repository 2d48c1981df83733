package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit/corpus"
	"github.com/ieee0824/vqdigit/vq"
)

var (
	codebookTrain string
	codebookFiles []string
	codebookK     int
	codebookOut   string
)

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Train a K-means codebook",
	Long: `Train a K-means codebook on the frames of the labelled feature files in
--train, or of the files given with --features. Centroids are seeded with the
first K frames. The codebook is written as K lines of reals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if codebookK > 0 {
			cfg.Codebook.K = codebookK
			cfg.HMM.NumSymbols = codebookK
		}
		p, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}

		var utts []corpus.Utterance
		for _, f := range codebookFiles {
			utts = append(utts, corpus.Utterance{Path: f})
		}
		if codebookTrain != "" {
			listed, err := utterances(codebookTrain, cfg.Labels)
			if err != nil {
				return err
			}
			utts = append(utts, listed...)
		}
		if len(utts) == 0 {
			return errors.New("no feature files: use --train or --features")
		}

		cb, res, err := p.BuildCodebook(cmd.Context(), utts)
		if err != nil {
			return err
		}
		if err := vq.SaveCodebookFile(codebookOut, cb); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d codewords, %d iterations, distortion %.6g\n",
			codebookOut, cb.K(), res.Iterations, res.Distortion)
		return nil
	},
}

func init() {
	codebookCmd.Flags().StringVar(&codebookTrain, "train", "", "training feature directory or manifest")
	codebookCmd.Flags().StringSliceVar(&codebookFiles, "features", nil, "additional feature files")
	codebookCmd.Flags().IntVarP(&codebookK, "k", "k", 0, "codebook size (overrides config)")
	codebookCmd.Flags().StringVar(&codebookOut, "out", "codebook.txt", "output codebook file")
	rootCmd.AddCommand(codebookCmd)
}
