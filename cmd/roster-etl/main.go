// Command roster-etl imports vendor roster/assessment exports into the
// student store.
package main

import (
	"errors"
	"os"

	"roster-etl/internal/app"
	"roster-etl/internal/logging"
)

func main() {
	runner := app.NewAppRunner()
	if err := runner.Run(os.Args[1:]); err != nil {
		logging.Logf(logging.Error, "roster-etl failed: %v", err)
		if errors.Is(err, app.ErrUsage) {
			runner.Usage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}
