// Command electionctl performs operator tasks against the election database:
// schema migration, bulk voter enrollment from CSV, results export and the
// tally audit.
package main

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
)

func main() {
	config.LoadEnv()
	config.ConfigureLogging()

	open := func() (*gorm.DB, error) { return config.ConnectDatabase() }
	if err := rootCmd(open).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
