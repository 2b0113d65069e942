// Package main provides the entry point for the logtriage tool. The tool
// collects Google Cloud Logging entries around an incident or lookback
// window, classifies the errors it finds, and emits triage reports.
package main

import (
	"os"

	"logtriage/cmd/triage/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
