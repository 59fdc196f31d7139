// Command tariffsync syncs warehouse box tariffs into Postgres and fans them out to Google Sheets
package main

import (
	"context"
	"os"

	"tariffsync/internal/platform/logger"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.Get().Error().Err(err).Msg("tariffsync failed")
		os.Exit(1)
	}
}
