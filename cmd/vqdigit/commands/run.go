package commands

import (
	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit/corpus"
	"github.com/ieee0824/vqdigit/vq"
)

var (
	runTrain    string
	runDev      string
	runWork     string
	runCodebook string
	runModel    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the codebook, quantize, train and evaluate",
	Long: `Run the whole workflow. The codebook is trained on the --train files only;
sequence files are written under --work. The codebook and model are saved
when --save-codebook and --save-model are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("train", runTrain); err != nil {
			return err
		}
		if err := requireFlag("dev", runDev); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		train, err := utterances(runTrain, cfg.Labels)
		if err != nil {
			return err
		}
		dev, err := utterances(runDev, cfg.Labels)
		if err != nil {
			return err
		}

		res, err := p.Run(cmd.Context(), train, dev, corpus.Store{Root: runWork})
		if err != nil {
			return err
		}
		if runCodebook != "" {
			if err := vq.SaveCodebookFile(runCodebook, res.Codebook); err != nil {
				return err
			}
		}
		if runModel != "" {
			if err := res.Model.SaveFile(runModel); err != nil {
				return err
			}
		}
		r := newEvalReport(res.Model.ID, res.Evaluation)
		return writeReport(cmd.OutOrStdout(), formatOutput, r, r.renderEval)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTrain, "train", "", "training feature directory or manifest")
	runCmd.Flags().StringVar(&runDev, "dev", "", "test feature directory or manifest")
	runCmd.Flags().StringVar(&runWork, "work", "hmm", "sequence directory")
	runCmd.Flags().StringVar(&runCodebook, "save-codebook", "", "write the codebook to this file")
	runCmd.Flags().StringVar(&runModel, "save-model", "", "write the model to this file")
	rootCmd.AddCommand(runCmd)
}
