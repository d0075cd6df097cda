package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"github.com/md-rashed-zaman/bookease/libs/config"
)

var CLI struct {
	Version     kong.VersionFlag
	DatabaseURL string `help:"Postgres connection string." env:"DATABASE_URL" name:"database-url"`

	Migrate struct {
		Up     MigrateUpCmd     `cmd:"" help:"Apply pending migrations."`
		Down   MigrateDownCmd   `cmd:"" help:"Roll back the latest migration."`
		Status MigrateStatusCmd `cmd:"" help:"Print migration status."`
	} `cmd:"" help:"Manage the booking schema."`
	Slots    SlotsCmd    `cmd:"" help:"Print the bookable slots of a service on a date."`
	Calendar CalendarCmd `cmd:"" help:"Print available and closed dates of a month."`
	Health   HealthCmd   `cmd:"" help:"Query a gRPC health endpoint."`
}

func main() {
	// .env is optional; flags and real environment variables win.
	_ = config.LoadDotenv()

	ctx := kong.Parse(&CLI,
		kong.Name("bookingctl"),
		kong.Description("Operator tooling for the BookEase booking service"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	err := ctx.Run(&Globals{DatabaseURL: CLI.DatabaseURL, Out: os.Stdout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
