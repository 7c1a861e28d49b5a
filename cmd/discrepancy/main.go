package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("discrepancy failed", "err", err)
		os.Exit(1)
	}
}
