package main

import (
	"os"

	"github.com/arbor-coach/arbor/server/mcpserver"
)

func main() {
	if err := mcpserver.Run(); err != nil {
		os.Exit(1)
	}
}
