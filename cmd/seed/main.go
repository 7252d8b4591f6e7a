package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/db"
	"github.com/clinicdesk/clinic-scheduling/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	clinics, err := seedClinics(context.Background(), pool, 3)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	practitioners, err := seedPractitioners(context.Background(), pool, clinics, 4)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, clinics, practitioners, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clinics (
		id   uuid PRIMARY KEY,
		name text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS practitioners (
		id        uuid PRIMARY KEY,
		clinic_id uuid NOT NULL REFERENCES clinics(id),
		name      text NOT NULL,
		specialty text
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id    uuid PRIMARY KEY,
		name  text NOT NULL,
		email text
	)`,
	`CREATE TABLE IF NOT EXISTS clinic_hours (
		clinic_id  uuid NOT NULL REFERENCES clinics(id),
		weekday    int  NOT NULL,
		open_time  text NOT NULL,
		close_time text NOT NULL,
		closed     bool NOT NULL DEFAULT false,
		PRIMARY KEY (clinic_id, weekday)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id               uuid PRIMARY KEY,
		practitioner_id  uuid REFERENCES practitioners(id),
		clinic_id        uuid NOT NULL REFERENCES clinics(id),
		patient_id       uuid NOT NULL REFERENCES patients(id),
		service_type     text NOT NULL,
		date             date NOT NULL,
		start_time       text NOT NULL,
		duration_minutes int  NOT NULL CHECK (duration_minutes > 0),
		status           text NOT NULL,
		notes            text NOT NULL DEFAULT '',
		emergency        bool NOT NULL DEFAULT false,
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_practitioner_date
		ON appointments (practitioner_id, date)`,
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Dental Clinic"

		if _, err := pool.Exec(ctx, `
			INSERT INTO clinics (id, name) VALUES ($1, $2)
		`, id, name); err != nil {
			return nil, err
		}

		// Mon-Fri 09:00-17:00, Sat 09:00-13:00, Sun closed.
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			open, close, closed := "09:00", "17:00", false
			switch wd {
			case time.Sunday:
				closed = true
			case time.Saturday:
				close = "13:00"
			}
			if _, err := pool.Exec(ctx, `
				INSERT INTO clinic_hours (clinic_id, weekday, open_time, close_time, closed)
				VALUES ($1, $2, $3, $4, $5)
			`, id, int(wd), open, close, closed); err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}
	return ids, nil
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, perClinic int) (map[uuid.UUID][]uuid.UUID, error) {
	log.Printf("seeding %d practitioners per clinic", perClinic)

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Periodontics",
		"Endodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
	}

	byClinic := make(map[uuid.UUID][]uuid.UUID, len(clinics))
	for _, clinicID := range clinics {
		for i := 0; i < perClinic; i++ {
			id := uuid.New()
			if _, err := pool.Exec(ctx, `
				INSERT INTO practitioners (id, clinic_id, name, specialty)
				VALUES ($1, $2, $3, $4)
			`, id, clinicID, "Dr. "+gofakeit.Name(), gofakeit.RandomString(specialties)); err != nil {
				return nil, err
			}
			byClinic[clinicID] = append(byClinic[clinicID], id)
		}
	}
	return byClinic, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		if _, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email) VALUES ($1, $2, $3)
		`, id, gofakeit.Name(), gofakeit.Email()); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var serviceTypes = []string{"checkup", "cleaning", "filling", "extraction", "root-canal", "whitening"}

// seedAppointments books each practitioner a handful of non-overlapping
// visits over the coming two weeks, leaving plenty of open slots.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, practitioners map[uuid.UUID][]uuid.UUID, patients []uuid.UUID) error {
	log.Println("seeding appointments")

	total := 0
	for _, clinicID := range clinics {
		for _, practitionerID := range practitioners[clinicID] {
			for day := 0; day < 14; day++ {
				date := time.Now().AddDate(0, 0, day)
				if date.Weekday() == time.Sunday {
					continue
				}

				// Two or three bookings per working day.
				starts := []schedule.TimeOfDay{9 * 60, 11 * 60, 14*60 + 30}
				n := 2 + gofakeit.Number(0, 1)
				for _, start := range starts[:n] {
					if _, err := pool.Exec(ctx, `
						INSERT INTO appointments
							(id, practitioner_id, clinic_id, patient_id, service_type,
							 date, start_time, duration_minutes, status, notes, emergency)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
					`, uuid.New(), practitionerID, clinicID, patients[gofakeit.Number(0, len(patients)-1)], gofakeit.RandomString(serviceTypes),
						date.Format("2006-01-02"), start.String(), 60, "scheduled", "", gofakeit.Number(0, 19) == 0); err != nil {
						return err
					}
					total++
				}
			}
		}
	}

	log.Printf("seeded %d appointments", total)
	return nil
}
