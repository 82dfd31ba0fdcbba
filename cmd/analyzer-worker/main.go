package main

import (
	"os"

	"github.com/arbor-coach/arbor/server/analyzerworker"
)

func main() {
	if err := analyzerworker.Run(); err != nil {
		os.Exit(1)
	}
}
