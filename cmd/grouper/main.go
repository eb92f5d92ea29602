package main

import (
	"log"
	"os"

	"github.com/pricetracker/backend/internal/cli"
)

func main() {
	cli.Execute()
}

func init() {
	// Summaries go to stdout; keep the log on stderr
	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stderr)
}
