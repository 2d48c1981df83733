package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit/corpus"
	"github.com/ieee0824/vqdigit/vq"
)

var (
	quantizeCodebook string
	quantizeTrain    string
	quantizeDev      string
	quantizeOut      string
)

var quantizeCmd = &cobra.Command{
	Use:   "quantize",
	Short: "Convert feature files into symbol sequences",
	Long: `Quantize every labelled feature file against the codebook and append the
symbol sequence to <out>/<label>/<split>.seq. The sequence files of each
split given are cleared first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("codebook", quantizeCodebook); err != nil {
			return err
		}
		if quantizeTrain == "" && quantizeDev == "" {
			return fmt.Errorf("nothing to quantize: use --train and/or --dev")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cb, err := vq.LoadCodebookFile(quantizeCodebook, cfg.Feature.Dim)
		if err != nil {
			return err
		}
		cfg.Codebook.K = cb.K()
		cfg.HMM.NumSymbols = cb.K()
		p, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}

		store := corpus.Store{Root: quantizeOut}
		for _, in := range []struct {
			path  string
			split corpus.Split
		}{
			{quantizeTrain, corpus.Train},
			{quantizeDev, corpus.Dev},
		} {
			if in.path == "" {
				continue
			}
			utts, err := utterances(in.path, cfg.Labels)
			if err != nil {
				return err
			}
			if err := store.Reset(cfg.Labels, in.split); err != nil {
				return err
			}
			n, err := p.Quantize(cmd.Context(), cb, utts, store, in.split)
			if err != nil {
				return fmt.Errorf("quantize %s: %w", in.split, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sequences\n", in.split, n)
		}
		return nil
	},
}

func init() {
	quantizeCmd.Flags().StringVar(&quantizeCodebook, "codebook", "", "codebook file")
	quantizeCmd.Flags().StringVar(&quantizeTrain, "train", "", "training feature directory or manifest")
	quantizeCmd.Flags().StringVar(&quantizeDev, "dev", "", "test feature directory or manifest")
	quantizeCmd.Flags().StringVar(&quantizeOut, "out", "hmm", "sequence directory")
	rootCmd.AddCommand(quantizeCmd)
}
