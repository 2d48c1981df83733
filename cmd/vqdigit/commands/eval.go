package commands

import (
	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/corpus"
)

var (
	evalSeq   string
	evalModel string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Classify the dev sequences and report accuracy",
	Long: `Score every sequence in <seq>/<label>/dev.seq under each class HMM, pick
the most likely class and print the confusion matrix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("model", evalModel); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		model, err := acoustic.LoadFile(evalModel)
		if err != nil {
			return err
		}
		cfg.Labels = model.Labels
		cfg.HMM = model.Config
		cfg.Codebook.K = model.NumSymbols()
		p, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		ev, err := p.Evaluate(cmd.Context(), model, corpus.Store{Root: evalSeq})
		if err != nil {
			return err
		}
		r := newEvalReport(model.ID, ev)
		return writeReport(cmd.OutOrStdout(), formatOutput, r, r.renderEval)
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalSeq, "seq", "hmm", "sequence directory")
	evalCmd.Flags().StringVar(&evalModel, "model", "", "trained model file")
	rootCmd.AddCommand(evalCmd)
}
