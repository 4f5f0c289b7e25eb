package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garnizeh/talentflow/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := cli.NewRootCommand(version, buildTime).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
