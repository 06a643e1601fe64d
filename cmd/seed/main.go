package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medidesk/clinic-scheduling/internal/clinic"
	"github.com/medidesk/clinic-scheduling/internal/db"
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

	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	specializations := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		phone := gofakeit.Phone()

		availability, err := json.Marshal(randomAvailability())
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, phone, availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, name, spec, phone, availability)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

// randomAvailability gives each doctor a plausible weekly pattern: most
// weekdays covered, weekends mostly off.
func randomAvailability() clinic.WeeklyAvailability {
	var avail clinic.WeeklyAvailability

	for day := time.Sunday; day <= time.Saturday; day++ {
		weekend := day == time.Sunday || day == time.Saturday
		if weekend && !gofakeit.Bool() {
			continue
		}
		if !weekend && gofakeit.Number(0, 9) == 0 {
			continue
		}

		startHour := gofakeit.Number(8, 10)
		endHour := gofakeit.Number(15, 18)
		avail.Set(day, &clinic.Window{
			Start: fmt.Sprintf("%02d:00", startHour),
			End:   fmt.Sprintf("%02d:00", endHour),
		})
	}

	return avail
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	bloodGroups := []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	allergyPool := []string{"Penicillin", "Peanuts", "Latex", "Pollen", "Aspirin", "Shellfish"}

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			bloodGroup := bloodGroups[gofakeit.Number(0, len(bloodGroups)-1)]
			allergies := randomAllergies(allergyPool)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, blood_group, allergies, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, name, phone, bloodGroup, allergies)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// randomAllergies samples a small subset of the pool. The result is never
// nil: the allergies column is NOT NULL, and a nil slice would encode as
// SQL NULL instead of an empty array.
func randomAllergies(pool []string) []string {
	allergies := []string{}
	for _, a := range pool {
		if gofakeit.Number(0, 9) == 0 {
			allergies = append(allergies, a)
		}
	}
	return allergies
}
