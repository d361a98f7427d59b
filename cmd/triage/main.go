// triage runs the ticket analysis and follow-up checks from the command line
// without a database.
//
// Usage:
//
//	triage analyze [--mock] [--history=<text>] <description>
//	triage followup [--mock] <message>
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
