package main

import (
	"os"

	"pipeline-hub/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
