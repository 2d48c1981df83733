package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit/corpus"
)

var (
	trainSeq     string
	trainSymbols int
	trainOut     string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one HMM per label",
	Long: `Train one discrete HMM per configured label on <seq>/<label>/train.seq
with Baum-Welch, and save the model set. A ".zst" suffix on --out selects
zstd compression.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if trainSymbols > 0 {
			cfg.Codebook.K = trainSymbols
			cfg.HMM.NumSymbols = trainSymbols
		}
		p, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		model, results, err := p.Train(cmd.Context(), corpus.Store{Root: trainSeq})
		if err != nil {
			return err
		}
		if err := model.SaveFile(trainOut); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "model %s -> %s\n", model.ID, trainOut)
		for i, l := range model.Labels {
			r := results[i]
			fmt.Fprintf(w, "  %s: %d iterations, log P = %.4f", l, r.Iterations, r.FinalLogLikelihood)
			if r.Converged {
				fmt.Fprint(w, " (converged)")
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainSeq, "seq", "hmm", "sequence directory")
	trainCmd.Flags().IntVar(&trainSymbols, "symbols", 0, "alphabet size, i.e. codebook K (overrides config)")
	trainCmd.Flags().StringVar(&trainOut, "out", "model.gob.zst", "output model file")
	rootCmd.AddCommand(trainCmd)
}
