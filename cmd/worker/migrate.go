package main

import (
	"fmt"

	"github.com/casegen/casegen-backend/internal/storage/postgres"
)

// RunMigrate applies or rolls back the embedded schema.
func RunMigrate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one of up, down, version")
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	db, err := e.openDB()
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(db, e.logger)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		v, dirty, ok, err := m.Version()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no migrations applied")
			return nil
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
}
