package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"timesheet-bot/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}

func TestUserRepository(t *testing.T) {
	repo, err := NewUserRepository(openTestDB(t))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	user := &models.User{ChatID: 100, FirstName: "Ana", Username: "ana"}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Role != models.RoleClient {
		t.Fatalf("expected default client role, got %s", user.Role)
	}
	if err := repo.Create(&models.User{ChatID: 100, FirstName: "Otra"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	missing, err := repo.GetByChatID(999)
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown chat, got %v, %v", missing, err)
	}

	if err := repo.UpdateRole(100, models.RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if err := repo.UpdateRole(999, models.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	admins, err := repo.GetAdmins()
	if err != nil || len(admins) != 1 || admins[0].ChatID != 100 {
		t.Fatalf("expected one admin, got %v, %v", admins, err)
	}

	if err := repo.Create(&models.User{ChatID: 200, FirstName: "Beto"}); err != nil {
		t.Fatalf("create second: %v", err)
	}
	total, adminCount, err := repo.GetStats()
	if err != nil || total != 2 || adminCount != 1 {
		t.Fatalf("unexpected stats %d/%d, %v", total, adminCount, err)
	}

	if err := repo.Delete(200); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, _ := repo.Exists(200); exists {
		t.Fatal("expected user to be gone")
	}
}

func TestIrrigationRepository(t *testing.T) {
	repo, err := NewIrrigationRepository(openTestDB(t))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	first := &models.Irrigation{Lot: "L1", Date: "2024-02-01"}
	second := &models.Irrigation{Lot: "L2", Date: "2024-02-03", Note: "goteo"}
	for _, item := range []*models.Irrigation{first, second} {
		if err := repo.Create(item); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Lot != "L2" {
		t.Fatalf("expected newest first, got %+v", items)
	}

	first.Note = "manual"
	if err := repo.Update(first); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(first.ID)
	if err != nil || got == nil || got.Note != "manual" {
		t.Fatalf("expected updated note, got %+v, %v", got, err)
	}

	if err := repo.Update(&models.Irrigation{ID: 999, Lot: "x", Date: "y"}); !errors.Is(err, ErrIrrigationNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := repo.Delete(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(first.ID); !errors.Is(err, ErrIrrigationNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestPeriodSelectionRepository(t *testing.T) {
	repo, err := NewPeriodSelectionRepository(openTestDB(t))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	key, err := repo.Get(1)
	if err != nil || key != "" {
		t.Fatalf("expected empty selection, got %q, %v", key, err)
	}

	if err := repo.Save(1, "2024-2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(1, "2024-3"); err != nil {
		t.Fatalf("save again: %v", err)
	}

	key, err = repo.Get(1)
	if err != nil || key != "2024-3" {
		t.Fatalf("expected overwritten selection, got %q, %v", key, err)
	}
}
