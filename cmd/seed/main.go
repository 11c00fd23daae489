package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"laundry-billing/internal/config"
	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/api"
	pg "laundry-billing/internal/infra/db/postgres"
	"laundry-billing/internal/usecase"
)

// seed fills an empty development database with plans, one demo laundry and a trial.
func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg.Database.MaxConns = 4
	pool, err := pg.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	logger := zerolog.Nop()
	planRepo := pg.NewPostgresPlanRepo(pool)
	subUC := usecase.NewSubscriptionUseCase(pg.NewSubscriptionRepo(pool), planRepo, &logger)

	// If plans already exist, do nothing
	plans, err := planRepo.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (monthly=%s %s, trial=%dd, grace=%dd)\n", p.Name, p.PriceMonthly.StringFixed(2), p.Currency, p.TrialDays, p.GracePeriodDays)
		}
		return
	}

	seed := []struct {
		Name            string
		Monthly, Annual string
		Trial, Grace    int
	}{
		{"Basic", "29.00", "290.00", 14, 5},
		{"Pro", "59.00", "590.00", 14, 7},
	}
	var first *model.Plan
	for _, s := range seed {
		p, err := model.NewPlan(s.Name, decimal.RequireFromString(s.Monthly), decimal.RequireFromString(s.Annual), cfg.Billing.DefaultCurrency, s.Trial, s.Grace)
		if err != nil {
			log.Fatalf("build plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		if first == nil {
			first = p
		}
		fmt.Printf("seeded plan: %s (id=%s)\n", p.Name, p.ID)
	}

	// Directory rows normally come from the operational side of the platform.
	const (
		laundryID = "demo-laundry"
		branchID  = "demo-branch"
	)
	stmts := []struct {
		sql  string
		args []interface{}
	}{
		{`INSERT INTO laundries (id, name, contact_email) VALUES ($1, 'Demo Laundry', 'owner@demo-laundry.test') ON CONFLICT DO NOTHING`, []interface{}{laundryID}},
		{`INSERT INTO branches (id, laundry_id, name) VALUES ($1, $2, 'Main Street') ON CONFLICT DO NOTHING`, []interface{}{branchID, laundryID}},
		{`INSERT INTO profiles (id, branch_id, email, full_name) VALUES ('demo-clerk', $1, 'clerk@demo-laundry.test', 'Demo Clerk') ON CONFLICT DO NOTHING`, []interface{}{branchID}},
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.sql, s.args...); err != nil {
			log.Fatalf("seed directory: %v", err)
		}
	}

	sub, err := subUC.ProvisionTrial(ctx, branchID, first.ID, model.BillingIntervalMonthly)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		fmt.Println("demo branch already has a subscription")
	case err != nil:
		log.Fatalf("provision trial: %v", err)
	default:
		fmt.Printf("seeded trial: %s (ends %s)\n", sub.ID, sub.TrialEndsAt.Format(time.RFC3339))
	}

	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, "")
	if tok, err := auth.Mint("demo-owner", api.RoleOwner, "", 24*time.Hour); err == nil {
		fmt.Printf("owner token (24h): %s\n", tok)
	}

	fmt.Println("Seeding complete.")
}
