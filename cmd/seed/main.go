package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/db"
	"github.com/hackgods/hospital-appointment-scheduling/pkg/logging"
)

type seedCounts struct {
	Practitioners int
	Clients       int
	Weeks         int
	// FillRatio is the share of grid slots that get a booking.
	FillRatio float64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Default()
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()

	counts := seedCounts{
		Practitioners: getInt("SEED_PRACTITIONERS", 20),
		Clients:       getInt("SEED_CLIENTS", 500),
		Weeks:         getInt("SEED_WEEKS", 2),
		FillRatio:     getFloat("SEED_FILL_RATIO", 0.4),
	}
	logger.Info().Interface("counts", counts).Msg("seed starting")

	ctx := context.Background()

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	// Seeding is single-writer, so the in-process locker is enough.
	svc, err := appointment.NewService(appointment.NewPgRepository(pool), nil, cfg, appointment.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("service init error")
	}

	gofakeit.Seed(time.Now().UnixNano())

	practitioners, err := seedPractitioners(ctx, svc, counts.Practitioners, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed practitioners")
	}
	clients, err := seedClients(ctx, svc, counts.Clients, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed clients")
	}
	if err := seedBookings(ctx, svc, practitioners, clients, counts, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Msg("seed complete")
}

func seedPractitioners(ctx context.Context, svc *appointment.Service, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	departments := appointment.Departments()
	ids := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		p, err := svc.RegisterPractitioner(ctx, appointment.PractitionerInput{
			Name:       "Dr. " + gofakeit.Name(),
			Department: departments[gofakeit.Number(0, len(departments)-1)],
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}

	logger.Info().Int("count", len(ids)).Msg("practitioners seeded")
	return ids, nil
}

func seedClients(ctx context.Context, svc *appointment.Service, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		c, err := svc.RegisterClient(ctx, appointment.ClientInput{
			Name:           gofakeit.Name(),
			IdentityNumber: gofakeit.Numerify("###########"),
		})
		if appointment.KindOf(err) == appointment.KindConflict {
			// identity number collision; draw another
			i--
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)

		if len(ids)%100 == 0 {
			logger.Info().Int("seeded", len(ids)).Int("total", count).Msg("clients progress")
		}
	}

	logger.Info().Int("count", len(ids)).Msg("clients seeded")
	return ids, nil
}

// seedBookings fills the availability grid of each practitioner for the next
// weeks, skipping weekends. Booked cells take a random client.
func seedBookings(ctx context.Context, svc *appointment.Service, practitioners, clients []uuid.UUID, counts seedCounts, logger zerolog.Logger) error {
	if len(clients) == 0 {
		return nil
	}

	layout := svc.Layout()
	loc := svc.Location()
	weekStart := appointment.StartOfWeek(time.Now().In(loc), loc).AddDate(0, 0, 7)

	created, rejected := 0, 0
	for _, practitionerID := range practitioners {
		for day := 0; day < counts.Weeks*7; day++ {
			date := weekStart.AddDate(0, 0, day)
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			for _, label := range layout.Labels() {
				if gofakeit.Float64Range(0, 1) >= counts.FillRatio {
					continue
				}
				clock, err := time.Parse("15:04", label)
				if err != nil {
					return err
				}
				start := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)

				_, err = svc.Create(ctx, appointment.BookingInput{
					PractitionerID: practitionerID,
					ClientID:       clients[gofakeit.Number(0, len(clients)-1)],
					Start:          start,
					End:            start.Add(layout.Width()),
					Note:           "Seeded visit: " + gofakeit.Word(),
				})
				switch {
				case err == nil:
					created++
				case appointment.KindOf(err) == appointment.KindConflict:
					rejected++
				default:
					return err
				}
			}
		}
	}

	logger.Info().Int("created", created).Int("rejected", rejected).Msg("bookings seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
