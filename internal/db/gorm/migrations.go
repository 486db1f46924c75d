package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		// Migration 001: Students and their exploration records
		{
			ID: "001_students",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Student{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ExplorationRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("exploration_records", "students")
			},
		},

		// Migration 002: Drift history
		{
			ID: "002_drifts",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Drift{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("drifts")
			},
		},

		// Migration 003: Serendipity fingerprints
		{
			ID: "003_fingerprints",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Fingerprint{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("fingerprints")
			},
		},

		// Migration 004: Campus catalog
		{
			ID: "004_campus_catalog",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&CampusEvent{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&DiscoverySlot{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("discovery_slots", "campus_events")
			},
		},
	}
}
