package storage

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestMigrateSetsInitialVersion(t *testing.T) {
	s := newMemoryStorage(t, &Options{Version: 1})

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if v, _ := s.StorageVersion(); v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}
}

func TestMigrateRunsInSequence(t *testing.T) {
	var log []int
	migration := func(v int) MigrationFunc {
		return func(s *Storage) error {
			log = append(log, v)
			return s.SetItem(fmt.Sprintf("test:v%d", v), fmt.Sprintf("migration%d", v), nil)
		}
	}

	s := newMemoryStorage(t, &Options{
		Version:    3,
		Migrations: map[int]MigrationFunc{3: migration(3), 1: migration(1), 2: migration(2)},
	})

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if !reflect.DeepEqual(log, []int{1, 2, 3}) {
		t.Errorf("expected migrations [1 2 3], got %v", log)
	}

	var value string
	_, _ = s.GetItem("test:v2", &value, nil)
	if value != "migration2" {
		t.Errorf("expected migration2, got %q", value)
	}
	if v, _ := s.StorageVersion(); v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
}

func TestMigrateSkipsWhenCurrent(t *testing.T) {
	s := newMemoryStorage(t, &Options{
		Version: 2,
		Migrations: map[int]MigrationFunc{
			3: func(*Storage) error { return errors.New("should not run") },
		},
	})
	_ = s.SetItem(VersionKey, 3, nil)

	if err := s.Migrate(); err != nil {
		t.Errorf("Migrate failed: %v", err)
	}
	if v, _ := s.StorageVersion(); v != 3 {
		t.Errorf("expected version to stay 3, got %d", v)
	}
}

func TestMigrateRunsOnlyMissing(t *testing.T) {
	var log []int
	migrations := map[int]MigrationFunc{}
	for v := 1; v <= 4; v++ {
		migrations[v] = func(*Storage) error {
			log = append(log, v)
			return nil
		}
	}

	s := newMemoryStorage(t, &Options{Version: 4, Migrations: migrations})
	_ = s.SetItem(VersionKey, 2, nil)

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if !reflect.DeepEqual(log, []int{3, 4}) {
		t.Errorf("expected migrations [3 4], got %v", log)
	}
}

func TestMigrationHooks(t *testing.T) {
	var calls []string
	s := newMemoryStorage(t, &Options{
		Version: 2,
		Migrations: map[int]MigrationFunc{
			1: func(*Storage) error { return nil },
			2: func(*Storage) error { return nil },
		},
		Hooks: MigrationHooks{
			BeforeMigration: func(from, to int) { calls = append(calls, fmt.Sprintf("before:%d->%d", from, to)) },
			AfterMigration:  func(from, to int) { calls = append(calls, fmt.Sprintf("after:%d->%d", from, to)) },
		},
	})

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"before:0->2", "after:0->2"}) {
		t.Errorf("unexpected hook calls %v", calls)
	}
}

func TestMigrationError(t *testing.T) {
	var calls []string
	s := newMemoryStorage(t, &Options{
		Version: 2,
		Migrations: map[int]MigrationFunc{
			1: func(*Storage) error { return nil },
			2: func(*Storage) error { return errors.New("Migration failed") },
		},
		Hooks: MigrationHooks{
			OnMigrationError: func(err error, from, to int) {
				calls = append(calls, fmt.Sprintf("error:%s:%d->%d", err, from, to))
			},
		},
	})

	err := s.Migrate()
	if err == nil || !strings.Contains(err.Error(), "Migration failed") {
		t.Errorf("expected migration error, got %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"error:Migration failed:0->2"}) {
		t.Errorf("unexpected hook calls %v", calls)
	}
	if v, _ := s.StorageVersion(); v != 0 {
		t.Errorf("version must not change after a failed migration, got %d", v)
	}
}

func TestDataTransformationMigration(t *testing.T) {
	s := newMemoryStorage(t, &Options{
		Version: 2,
		Migrations: map[int]MigrationFunc{
			1: func(s *Storage) error {
				if err := s.SetItem("user:1", user{Name: "John", Age: 30}, nil); err != nil {
					return err
				}
				return s.SetItem("user:2", user{Name: "Jane", Age: 25}, nil)
			},
			2: func(s *Storage) error {
				keys, err := s.GetKeys("user", nil)
				if err != nil {
					return err
				}
				for _, key := range keys {
					var u user
					if _, err := s.GetItem(key, &u, nil); err != nil {
						return err
					}
					u.Email = strings.ToLower(u.Name) + "@example.com"
					if err := s.SetItem(key, u, nil); err != nil {
						return err
					}
				}
				return nil
			},
		},
	})

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	var u1, u2 user
	_, _ = s.GetItem("user:1", &u1, nil)
	_, _ = s.GetItem("user:2", &u2, nil)
	if u1 != (user{Name: "John", Age: 30, Email: "john@example.com"}) {
		t.Errorf("unexpected user 1: %+v", u1)
	}
	if u2 != (user{Name: "Jane", Age: 25, Email: "jane@example.com"}) {
		t.Errorf("unexpected user 2: %+v", u2)
	}
}
