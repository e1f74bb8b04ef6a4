// Command llamaworker is a sample consumer of the llamaworker client
// façade, external to the package surface it drives. It drives Load ->
// tokenize -> ingest -> generate end to end and prints generated tokens
// to stdout as they arrive.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
