// Seeds demo traffic into a local database through the regular
// ingestion path.
package main

import (
	"flag"
	"log"

	"pagepulse/internal"
	"pagepulse/internal/seeder"
	"pagepulse/internal/settings"
)

func main() {
	hostname := flag.String("hostname", "demo.example.com", "hostname of the site to seed")
	sessions := flag.Int("sessions", 200, "number of visitor sessions to generate")
	flag.Parse()

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := settings.SetupDefaultSettings(app.DBManager.GetConnection()); err != nil {
		log.Fatalf("Failed to initialize settings: %v", err)
	}

	s := seeder.NewSeeder(app.DBManager, nil, *sessions)
	if err := s.Seed(*hostname); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
