// seed_catalog.go — standalone script to load a starter activity catalog and
// context tags from a YAML file straight into the database.
//
// Usage:
//
//	go run scripts/seed_catalog.go -catalog catalog.yaml -db postgres://localhost/kindred
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Activities []catalogActivity `yaml:"activities"`
}

type catalogActivity struct {
	Name        string           `yaml:"name"`
	Category    string           `yaml:"category"`
	Description string           `yaml:"description"`
	Contexts    []catalogContext `yaml:"contexts"`
}

type catalogContext struct {
	Name      string  `yaml:"name"`
	Location  string  `yaml:"location"`
	Energy    string  `yaml:"energy"`
	TimeOfDay string  `yaml:"time_of_day"`
	FitScore  float64 `yaml:"fit_score"`
}

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "path to catalog YAML file")
	dbURL := flag.String("db", os.Getenv("KINDRED_DATABASE_URL"), "database URL")
	dryRun := flag.Bool("dry-run", false, "print items without inserting")
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}
	var cat catalogFile
	if err := yaml.Unmarshal(data, &cat); err != nil {
		log.Fatalf("parse catalog: %v", err)
	}

	if *dryRun {
		for _, a := range cat.Activities {
			fmt.Printf("%s (%s) — %d contexts\n", a.Name, a.Category, len(a.Contexts))
		}
		return
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for _, a := range cat.Activities {
		var activityID string
		err := pool.QueryRow(ctx, `
			INSERT INTO activities (name, category, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET category = EXCLUDED.category
			RETURNING activity_id`,
			a.Name, a.Category, a.Description,
		).Scan(&activityID)
		if err != nil {
			log.Fatalf("insert activity %q: %v", a.Name, err)
		}

		for _, c := range a.Contexts {
			var contextID string
			err := pool.QueryRow(ctx, `
				INSERT INTO contexts (name, location, energy, time_of_day)
				VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING context_id`,
				c.Name, c.Location, c.Energy, c.TimeOfDay,
			).Scan(&contextID)
			if err != nil {
				log.Fatalf("insert context %q: %v", c.Name, err)
			}

			fit := c.FitScore
			if fit == 0 {
				fit = 1.0
			}
			_, err = pool.Exec(ctx, `
				INSERT INTO activity_contexts (activity_id, context_id, fit_score)
				VALUES ($1, $2, $3)
				ON CONFLICT (activity_id, context_id) DO UPDATE SET fit_score = EXCLUDED.fit_score`,
				activityID, contextID, fit)
			if err != nil {
				log.Fatalf("link %q to %q: %v", a.Name, c.Name, err)
			}
		}
		log.Printf("seeded %s with %d contexts", a.Name, len(a.Contexts))
	}
}
