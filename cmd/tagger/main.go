// Command tagger runs the relational dialogue tagger against a remote network.
//
// Usage:
//
//	tagger [flags] <command> [args]
//
// Commands:
//
//	predict  - tag every turn of a corpus and score the predictions
//	measure  - compute the multi-pass training loss of a corpus
//	embed    - build or refresh the cached word embedding matrix
//	inspect  - show logged steps and stored discourse threads
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
