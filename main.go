// Package main is the entry point for the rollcorr CLI tool, which measures
// how well rolling batting rates predict the next plate appearance.
package main

import "github.com/pable/go-rollcorr/cmd"

func main() {
	cmd.Execute()
}
