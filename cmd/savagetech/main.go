// Package main is the entry point for the savagetech CLI.
package main

import "github.com/lucifergaming/savagetech/internal/cli"

func main() {
	cli.Execute()
}
