// Command reclaimctl is the operator CLI for the Reclaim job pipeline.
package main

import (
	_ "time/tzdata"

	"reclaim/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
