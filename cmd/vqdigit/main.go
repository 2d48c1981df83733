// Command vqdigit trains and evaluates the VQ/HMM isolated-digit recognizer.
//
// Usage:
//
//	vqdigit [flags] <command> [args]
//
// Commands:
//
//	codebook   - Train a K-means codebook from feature files
//	quantize   - Convert train/dev feature files into symbol sequences
//	train      - Train one HMM per label from the training sequences
//	eval       - Classify the dev sequences and report accuracy
//	run        - All of the above in one step
//	recognize  - Classify individual feature files
package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/vqdigit/cmd/vqdigit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
