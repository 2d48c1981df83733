package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/vqdigit"
	"github.com/ieee0824/vqdigit/corpus"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	logFormat    string
	workers      int
	formatOutput string
)

var rootCmd = &cobra.Command{
	Use:   "vqdigit",
	Short: "Isolated digit recognition with vector quantization and discrete HMMs",
	Long: `vqdigit - train and evaluate a VQ/HMM isolated-digit recognizer.

Feature files hold whitespace-separated reals, one frame per line. The label
of a file is the first configured label found in its name (spk01_3_a.mfcc is
labelled "3" with the default labels). Wherever a directory of feature files
is accepted, a path<TAB>label manifest file may be given instead.

Workflow:
  vqdigit codebook --train data/train --out codebook.txt
  vqdigit quantize --codebook codebook.txt --train data/train --dev data/dev --out hmm
  vqdigit train --seq hmm --out model.gob.zst
  vqdigit eval --seq hmm --model model.gob.zst

Or in one step:
  vqdigit run --train data/train --dev data/dev --work hmm`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-iteration progress")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", 0, "parallel workers for every stage (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "output", "o", "table", "report format: table, yaml or json")
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig() (vqdigit.Config, error) {
	cfg, err := vqdigit.LoadConfigOrDefault(configPath)
	if err != nil {
		return cfg, err
	}
	if workers > 0 {
		cfg.SetWorkers(workers)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newPipeline returns a pipeline for cfg that logs to the command's stderr.
func newPipeline(cmd *cobra.Command, cfg vqdigit.Config) (*vqdigit.Pipeline, error) {
	logger, err := vqdigit.NewLoggerFromConfig(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, err
	}
	return vqdigit.NewPipeline(cfg, vqdigit.WithLogger(logger))
}

// utterances lists the labelled feature files under path. A directory is
// scanned for file names carrying a label; any other file is read as a
// path<TAB>label manifest.
func utterances(path string, labels []string) ([]corpus.Utterance, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return corpus.Scan(path, labels)
	}
	return corpus.ReadManifestFile(path)
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("flag --%s is required", name)
	}
	return nil
}
