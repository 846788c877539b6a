// Package main is the entry point for the DataBridge service.
package main

import (
	"os"

	"github.com/kart-io/databridge/cmd/databridge/app"
)

func main() {
	if err := app.NewApp().Execute(); err != nil {
		os.Exit(1)
	}
}
