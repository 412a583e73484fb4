package main

import (
	"fmt"
	"os"

	servecmder "github.com/papercomputeco/advisor/cmd/advisor/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()

	cmd.Use = "advisor-relay"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .advisor/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
