package main

import (
	"os"

	"github.com/soundprediction/studygraph/cmd/studygraph"
)

func main() {
	if err := studygraph.Execute(); err != nil {
		os.Exit(1)
	}
}
