// Command ingest loads a jurisdiction's legal PDFs into the vector index.
//
//	ingest --city london --source ./data/london
//	ingest --city "New York" --source s3://corpus-bucket/new-york/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/leaselens/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.LoadConfig()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
