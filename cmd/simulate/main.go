package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-appointment-scheduling/internal/api"
	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/db"
	"github.com/hackgods/hospital-appointment-scheduling/pkg/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	CancelRatio       float64
	ReadRatio         float64
	PractitionerLimit int
	ClientLimit       int
	Days              int
	PostgresDSN       string
}

type DataPool struct {
	Practitioners []uuid.UUID
	Clients       []uuid.UUID
	mu            sync.RWMutex
	bookings      []uuid.UUID
}

func (dp *DataPool) AddBooking(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, id)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.Latencies))
	copy(sorted, om.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Metrics struct {
	Create       OperationMetrics
	Cancel       OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
	// window is the booking horizon every worker draws start times from.
	windowStart time.Time
}

func main() {
	logger := logging.New(getEnv("LOG_LEVEL", "info"), getEnv("APP_ENV", "dev")).With().Str("service", "simulate").Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("create", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, int32(cfg.Workers))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("practitioners", len(dataPool.Practitioners)).Int("clients", len(dataPool.Clients)).Msg("data pool loaded")

	sim := &Simulator{
		config:      cfg,
		pool:        dataPool,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		windowStart: time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1),
	}

	sim.Run()
	doubles := sim.Audit(context.Background())
	sim.PrintReport(doubles)

	if doubles > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	base, err := config.Load()
	if err != nil {
		return SimConfig{}, err
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:       getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.3),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 5),
		ClientLimit:       getInt("SIM_CLIENT_LIMIT", 500),
		Days:              getInt("SIM_DAYS", 2),
		PostgresDSN:       base.PostgresDSN,
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DAYS must be > 0")
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	dataPool.Practitioners, err = loadIDs(ctx, pool, `SELECT id FROM practitioners WHERE active ORDER BY created_at LIMIT $1`, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	dataPool.Clients, err = loadIDs(ctx, pool, `SELECT id FROM clients WHERE active ORDER BY created_at LIMIT $1`, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}

	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no active practitioners, run seed first")
	}
	if len(dataPool.Clients) == 0 {
		return nil, fmt.Errorf("no active clients, run seed first")
	}
	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Msg("simulation running")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doCreate(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doAvailability(ctx, rng)
		}
	}
}

// randomRange draws quarter-hour aligned ranges of 15 to 60 minutes inside
// working hours, so concurrent workers keep colliding on partial overlaps.
func (s *Simulator) randomRange(rng *rand.Rand) (time.Time, time.Time) {
	day := s.windowStart.AddDate(0, 0, rng.Intn(s.config.Days))
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(28))*15*time.Minute)
	return start, start.Add(time.Duration(1+rng.Intn(4)) * 15 * time.Minute)
}

func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand) {
	start, end := s.randomRange(rng)
	body, _ := json.Marshal(api.BookingRequest{
		PractitionerID: s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))].String(),
		ClientID:       s.pool.Clients[rng.Intn(len(s.pool.Clients))].String(),
		Start:          start.Format(time.RFC3339),
		End:            end.Format(time.RFC3339),
		Note:           "simulated",
	})

	began := time.Now()
	resp, err := s.post(ctx, "/bookings", body)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Create.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		var created api.BookingResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ID != uuid.Nil {
			s.pool.AddBooking(created.ID)
		}
	}
	s.metrics.Create.Record(latency, resp.StatusCode == http.StatusCreated, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.post(ctx, "/bookings/"+id.String()+"/cancel", nil)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Cancel.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	s.metrics.Cancel.Record(latency, resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	id := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	path := fmt.Sprintf("/practitioners/%s/availability?week_start=%s", id, s.windowStart.Format("2006-01-02"))

	began := time.Now()
	resp, err := s.get(ctx, path)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Availability.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	s.metrics.Availability.Record(latency, resp.StatusCode == http.StatusOK, false)
}

// Audit lists every active booking in the simulated window and counts pairs
// on the same practitioner whose ranges overlap.
func (s *Simulator) Audit(ctx context.Context) int {
	from := s.windowStart
	to := from.AddDate(0, 0, s.config.Days)

	doubles := 0
	for _, id := range s.pool.Practitioners {
		q := url.Values{}
		q.Set("practitioner_id", id.String())
		q.Set("from", from.Format(time.RFC3339))
		q.Set("to", to.Format(time.RFC3339))

		resp, err := s.get(ctx, "/bookings?"+q.Encode())
		if err != nil {
			s.logger.Error().Err(err).Str("practitioner_id", id.String()).Msg("audit request failed")
			continue
		}
		var list api.BookingListResponse
		err = json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if err != nil {
			s.logger.Error().Err(err).Str("practitioner_id", id.String()).Msg("audit decode failed")
			continue
		}

		for _, pair := range findOverlaps(list.Bookings) {
			doubles++
			s.logger.Error().
				Str("practitioner_id", id.String()).
				Str("first", pair[0].String()).
				Str("second", pair[1].String()).
				Msg("double booking detected")
		}
	}
	return doubles
}

// findOverlaps returns the ids of every overlapping pair among non-cancelled
// bookings. Ranges are half-open, so touching bookings do not count.
func findOverlaps(bookings []api.BookingResponse) [][2]uuid.UUID {
	active := make([]api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		if !b.Cancelled {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Start.Before(active[j].Start) })

	var pairs [][2]uuid.UUID
	for i := range active {
		for j := i + 1; j < len(active) && active[j].Start.Before(active[i].End); j++ {
			pairs = append(pairs, [2]uuid.UUID{active[i].ID, active[j].ID})
		}
	}
	return pairs
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *Simulator) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

func (s *Simulator) PrintReport(doubles int) {
	line := strings.Repeat("=", 80)
	fmt.Println("\n" + line)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(line)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Practitioners: %d\n", len(s.pool.Practitioners))
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Availability", &s.metrics.Availability)

	fmt.Printf("Double bookings found: %d\n", doubles)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", om.Success, pct(atomic.LoadInt64(&om.Success)))
	if n := atomic.LoadInt64(&om.Conflict); n > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", n, pct(n))
	}
	if n := atomic.LoadInt64(&om.Error); n > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", n, pct(n))
	}
	fmt.Printf("  Latency: p50=%s p95=%s p99=%s\n",
		om.Percentile(50).Round(time.Millisecond),
		om.Percentile(95).Round(time.Millisecond),
		om.Percentile(99).Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
