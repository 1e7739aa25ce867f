// Package database runs the embedded schema migrations.
// A migration and its tracking row commit as one transaction, so a failed
// migration leaves the schema untouched and is retried on the next run.
package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_strata_migrations"
}

// RunMigrations applies every pending migration in filename order.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	pending, err := pendingMigrations(db)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Println("migrations: schema up to date")
		return nil
	}

	for _, name := range pending {
		if err := applyMigration(db, name); err != nil {
			return err
		}
		log.Printf("migrations: applied %s", name)
	}
	return nil
}

// pendingMigrations returns the embedded migration names not yet recorded,
// in filename (001_, 002_, ...) order.
func pendingMigrations(db *gorm.DB) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var applied []string
	if err := db.Model(&MigrationRecord{}).Pluck("name", &applied).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || done[name] {
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)
	return pending, nil
}

// applyMigration executes one migration file and writes its tracking row in
// a single transaction.
func applyMigration(db *gorm.DB, name string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", name, err)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(content)).Error; err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		if err := tx.Create(&MigrationRecord{Name: name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		return nil
	})
}
