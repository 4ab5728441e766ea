package storage

import (
	"fmt"
	"sort"
)

// VersionKey is the key the version of the stored data is kept under.
const VersionKey = "__storage_version__"

// MigrationFunc upgrades the stored data to the version it is registered for.
type MigrationFunc func(s *Storage) error

// MigrationHooks are called around a Migrate run that has work to do.
type MigrationHooks struct {
	BeforeMigration  func(from, to int)
	AfterMigration   func(from, to int)
	OnMigrationError func(err error, from, to int)
}

// StorageVersion returns the version of the stored data (0 if none was stored yet).
func (s *Storage) StorageVersion() (int, error) {
	var version int
	if _, err := s.GetItem(VersionKey, &version, nil); err != nil {
		return 0, err
	}
	return version, nil
}

// Migrate runs every registered migration above the stored version up to
// Options.Version in ascending order and stores the new version. The version
// is only written after all migrations succeeded.
func (s *Storage) Migrate() error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	from, err := s.StorageVersion()
	if err != nil {
		return fmt.Errorf("failed to read storage version: %w", err)
	}
	to := s.opts.Version
	if from >= to {
		return nil
	}

	var versions []int
	for v := range s.opts.Migrations {
		if v > from && v <= to {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)

	hooks := s.opts.Hooks
	if hooks.BeforeMigration != nil {
		hooks.BeforeMigration(from, to)
	}

	for _, v := range versions {
		Logger.Infof("running storage migration %d", v)
		if err := s.opts.Migrations[v](s); err != nil {
			if hooks.OnMigrationError != nil {
				hooks.OnMigrationError(err, from, to)
			}
			return fmt.Errorf("migration %d failed: %w", v, err)
		}
	}

	if err := s.SetItem(VersionKey, to, nil); err != nil {
		return fmt.Errorf("failed to store storage version: %w", err)
	}
	if hooks.AfterMigration != nil {
		hooks.AfterMigration(from, to)
	}
	Logger.Infof("storage migrated from version %d to %d", from, to)
	return nil
}
