// Command sweep deletes expired links and refresh tokens once and exits.
// It is meant to be run from cron next to a server started with a long
// sweep interval.
package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/imagehost/internal/server"
	"github.com/dmitrijs2005/imagehost/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	res, err := app.SweepOnce(ctx)
	if err != nil {
		log.Printf("sweep failed: %v", err)
		os.Exit(1)
	}

	log.Printf("deleted %d expired links and %d expired refresh tokens", res.Links, res.Tokens)
}
