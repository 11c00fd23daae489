//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"

	"github.com/shopspring/decimal"
)

func TestPlanRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresPlanRepo(testPool)
	ctx := context.Background()
	cleanup(t)

	// This plan object will be created and then used across the sub-tests.
	plan, err := model.NewPlan("Pro", decimal.RequireFromString("49.90"), decimal.RequireFromString("499.00"), "eur", 14, 7)
	if err != nil {
		t.Fatalf("model.NewPlan() failed: %v", err)
	}

	t.Run("should create and read a new plan", func(t *testing.T) {
		if err := repo.Save(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("Failed to save new plan: %v", err)
		}

		found, err := repo.FindByID(ctx, repository.NoTX, plan.ID)
		if err != nil {
			t.Fatalf("Failed to find plan by ID: %v", err)
		}
		if found.Name != "Pro" || found.Currency != "EUR" || found.GracePeriodDays != 7 {
			t.Errorf("unexpected plan: %+v", found)
		}
		if !found.PriceMonthly.Equal(plan.PriceMonthly) || !found.PriceAnnual.Equal(plan.PriceAnnual) {
			t.Errorf("prices did not round-trip: %s / %s", found.PriceMonthly, found.PriceAnnual)
		}
	})

	t.Run("should update an existing plan", func(t *testing.T) {
		plan.GracePeriodDays = 3
		plan.PriceMonthly = decimal.NewFromInt(59)
		if err := repo.Save(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("Failed to update plan: %v", err)
		}
		found, _ := repo.FindByID(ctx, repository.NoTX, plan.ID)
		if found.GracePeriodDays != 3 || !found.PriceMonthly.Equal(decimal.NewFromInt(59)) {
			t.Errorf("update not persisted: %+v", found)
		}
	})

	t.Run("should list all plans", func(t *testing.T) {
		basic, _ := model.NewPlan("Basic", decimal.NewFromInt(19), decimal.NewFromInt(190), "eur", 14, 5)
		if err := repo.Save(ctx, repository.NoTX, basic); err != nil {
			t.Fatal(err)
		}
		plans, err := repo.ListAll(ctx, repository.NoTX)
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(plans) != 2 || plans[0].Name != "Basic" {
			t.Errorf("expected cheapest plan first, got %+v", plans)
		}
	})

	t.Run("should report a missing plan", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, repository.NoTX, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
