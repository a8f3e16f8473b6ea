package app

import (
	"os"
	"strconv"
)

const dryRunEnv = "FISCALIA_DRY_RUN"

// DryRun reports whether a binary should validate its configuration and exit
// before connecting to Postgres or Redis.
func DryRun() bool {
	on, err := strconv.ParseBool(os.Getenv(dryRunEnv))
	return err == nil && on
}
