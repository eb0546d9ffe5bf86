// Command advisorctl runs the plant advisor engines in-process for local
// use: an interactive chat, one-off predictions and model inspection.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
