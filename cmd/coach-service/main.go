package main

import (
	"os"

	"github.com/arbor-coach/arbor/server/coachservice"
)

func main() {
	if err := coachservice.Run(); err != nil {
		os.Exit(1)
	}
}
