package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"timesheet-bot/internal/models"
	"timesheet-bot/internal/repository"
)

func newTestRepos(t *testing.T) (*repository.GormUserRepository, *repository.IrrigationRepository, *repository.PeriodSelectionRepository) {
	t.Helper()
	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { repository.Close(db) })

	users, err := repository.NewUserRepository(db)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	irrigations, err := repository.NewIrrigationRepository(db)
	if err != nil {
		t.Fatalf("irrigations: %v", err)
	}
	selections, err := repository.NewPeriodSelectionRepository(db)
	if err != nil {
		t.Fatalf("selections: %v", err)
	}
	return users, irrigations, selections
}

func TestUserServiceRolesAndAdmin(t *testing.T) {
	users, _, _ := newTestRepos(t)
	svc := NewUserService(users)

	if err := svc.InitializeAdmin(1); err != nil {
		t.Fatalf("init admin: %v", err)
	}
	user, created, err := svc.Register(2, "beto", "", "")
	if err != nil || !created || user.FirstName != "beto" || user.IsAdmin() {
		t.Fatalf("unexpected registration %+v, %v, %v", user, created, err)
	}
	if _, created, _ := svc.Register(2, "beto", "Beto", ""); created {
		t.Fatal("expected second registration to return the existing user")
	}

	if err := svc.UpdateRole(2, 1, models.RoleClient); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.UpdateRole(1, 2, models.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if ok, _ := svc.IsAdmin(2); !ok {
		t.Fatal("expected user 2 to be admin")
	}

	text, err := svc.FormatAllUsers()
	if err != nil || !strings.Contains(text, "administradores: 2") {
		t.Fatalf("unexpected listing %q, %v", text, err)
	}

	if _, err := svc.GetUser(99); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIrrigationServiceValidation(t *testing.T) {
	_, irrigations, _ := newTestRepos(t)
	svc := NewIrrigationService(irrigations)

	if _, err := svc.Create(" ", "2024-02-01", ""); !errors.Is(err, ErrIrrigationInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}

	item, err := svc.Create("L1", "2024-02-01", "goteo")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Update(item.ID, "L1", "", ""); !errors.Is(err, ErrIrrigationInvalid) {
		t.Fatalf("expected validation error on update, got %v", err)
	}
	if _, err := svc.Update(item.ID, "L2", "2024-02-02", ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	items, err := svc.List()
	if err != nil || len(items) != 1 || items[0].Lot != "L2" {
		t.Fatalf("unexpected list %+v, %v", items, err)
	}
	if err := svc.Delete(item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestPeriodServiceRemembersSelection(t *testing.T) {
	_, _, selections := newTestRepos(t)
	store := &fakeStore{
		version: "v1",
		rows:    []models.SubmissionRow{testRow("1", "A", "2024-02-10", 8, "Riego")},
	}
	w := newTestWorkflow(store, "2024-02-10")
	svc := NewPeriodService(w, selections)

	if _, err := svc.Select(5, ""); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	w.Refresh(context.Background())

	period, err := svc.Select(5, "2024-2")
	if err != nil || period.Key != "2024-2" {
		t.Fatalf("unexpected period %v, %v", period.Key, err)
	}

	period, err = svc.Select(5, "")
	if err != nil || period.Key != "2024-2" {
		t.Fatalf("expected remembered period, got %v, %v", period.Key, err)
	}

	period, err = svc.Select(6, "")
	if err != nil || period.Key != "2024-3" {
		t.Fatalf("expected most recent period for a new chat, got %v, %v", period.Key, err)
	}

	if _, err := svc.Select(5, "garbage"); err == nil {
		t.Fatal("expected invalid key error")
	}
}
