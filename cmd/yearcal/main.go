package main

import (
	"os"

	"yearcal/cmd/yearcal/commands"
	appLog "yearcal/internal/log"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		appLog.Error("yearcal failed", err)
		os.Exit(1)
	}
}
