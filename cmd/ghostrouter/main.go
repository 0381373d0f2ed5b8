package main

import (
	"os"

	"github.com/Shopify/ghostrouter/cmd/ghostrouter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
