package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/bookease/libs/db"
	"github.com/md-rashed-zaman/bookease/libs/grpcx"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/bookease/services/booking-service/migrations"
)

// Globals is handed to every command's Run.
type Globals struct {
	DatabaseURL string
	Out         io.Writer
}

func (g *Globals) open(ctx context.Context) (*db.Pool, error) {
	if g.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required (flag --database-url or env)")
	}
	return db.Open(ctx, g.DatabaseURL)
}

func (g *Globals) migrator(ctx context.Context, fn func(*db.Migrator) error) error {
	pool, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool, migrations.FS, ".", slog.Default())
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func (g *Globals) service(ctx context.Context, fn func(*booking.Service) error) error {
	pool, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(booking.NewService(storage.NewStore(pool, outbox.NewRepository(pool)), slog.Default()))
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(g *Globals) error {
	ctx := context.Background()
	return g.migrator(ctx, func(m *db.Migrator) error { return m.Up(ctx) })
}

type MigrateDownCmd struct{}

func (c *MigrateDownCmd) Run(g *Globals) error {
	ctx := context.Background()
	return g.migrator(ctx, func(m *db.Migrator) error { return m.Down(ctx) })
}

type MigrateStatusCmd struct{}

func (c *MigrateStatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	return g.migrator(ctx, func(m *db.Migrator) error { return m.Status(ctx) })
}

type SlotsCmd struct {
	Slug    string `help:"Business slug." required:""`
	Service string `help:"Service id." required:""`
	Date    string `help:"Business-local date (YYYY-MM-DD)." required:""`
}

func (c *SlotsCmd) Run(g *Globals) error {
	ctx := context.Background()
	return g.service(ctx, func(svc *booking.Service) error {
		day, err := svc.DaySlots(ctx, c.Slug, c.Service, c.Date)
		if err != nil {
			return err
		}
		printSlots(g.Out, day)
		return nil
	})
}

type CalendarCmd struct {
	Slug    string `help:"Business slug." required:""`
	Service string `help:"Service id." required:""`
	Month   string `help:"Business-local month (YYYY-MM)." required:""`
}

func (c *CalendarCmd) Run(g *Globals) error {
	ctx := context.Background()
	return g.service(ctx, func(svc *booking.Service) error {
		sum, err := svc.MonthSummary(ctx, c.Slug, c.Service, c.Month)
		if err != nil {
			return err
		}
		printMonth(g.Out, c.Month, sum)
		return nil
	})
}

type HealthCmd struct {
	Addr    string        `help:"gRPC address." default:"localhost:9093"`
	Service string        `help:"Service name; empty checks overall status."`
	Timeout time.Duration `help:"Dial and call timeout." default:"3s"`
}

func (c *HealthCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, c.Addr, grpcx.DialOptions{Timeout: c.Timeout})
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	status, err := grpcx.CheckHealth(ctx, conn, c.Service)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.Out, status.String())
	return nil
}

func printSlots(w io.Writer, day booking.DayAvailability) {
	fmt.Fprintf(w, "%s on %s (%s)\n", day.Service.Name, day.Date, day.Business.Timezone)
	if len(day.Slots) == 0 {
		fmt.Fprintln(w, "  no slots")
		return
	}
	for _, s := range day.Slots {
		fmt.Fprintf(w, "  %s  %s - %s\n", s.Label, s.Start.UTC().Format(time.RFC3339), s.End.UTC().Format(time.RFC3339))
	}
}

func printMonth(w io.Writer, month string, sum availability.MonthSummary) {
	fmt.Fprintf(w, "%s: %d available, %d closed\n", month, len(sum.Available), len(sum.Closed))
	for _, d := range sum.Available {
		fmt.Fprintf(w, "  %s  open\n", d)
	}
	for _, d := range sum.Closed {
		fmt.Fprintf(w, "  %s  closed\n", d)
	}
}
