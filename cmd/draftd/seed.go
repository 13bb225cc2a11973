package main

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/infrastructure/store"
)

var demoProducts = []store.Product{
	{ID: 1, Name: "Vegetable lasagne", DisplayName: "Lasagne (veg)", Price: 20},
	{ID: 2, Name: "Chicken curry with rice", Price: 24.5},
	{ID: 3, Name: "Fruit salad", Price: 4.5},
	{ID: 4, Name: "Bread rolls (12)", Price: 3.2},
	{ID: 5, Name: "Lentil soup", Price: 12},
}

var demoCustomers = []auth.Customer{
	{ID: "school-12", Name: "North School Kitchen"},
	{ID: "care-3", Name: "Care Home Three"},
}

// demoUser builds the account seeded when DRAFTD_DEMO_PASSWORD is set
func demoUser() (store.User, bool, error) {
	password := os.Getenv("DRAFTD_DEMO_PASSWORD")
	if password == "" {
		return store.User{}, false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.User{}, false, err
	}
	email := os.Getenv("DRAFTD_DEMO_EMAIL")
	if email == "" {
		email = "cook@example.com"
	}
	return store.User{
		ID:           "demo-user",
		Email:        strings.ToLower(email),
		Name:         "Demo Cook",
		PasswordHash: hash,
		Active:       true,
		Customers:    demoCustomers,
	}, true, nil
}

func seedMemory(mem *store.MemoryStore, logger *zap.Logger) error {
	for _, p := range demoProducts {
		mem.AddProduct(p)
	}
	u, ok, err := demoUser()
	if err != nil || !ok {
		return err
	}
	mem.AddUser(u)
	logger.Info("seeded demo account", zap.String("email", u.Email))
	return nil
}

func seedPostgres(ctx context.Context, pg *store.PostgresStore, logger *zap.Logger) error {
	u, ok, err := demoUser()
	if err != nil || !ok {
		return err
	}
	for _, p := range demoProducts {
		if err := pg.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	if err := pg.UpsertUser(ctx, u); err != nil {
		return err
	}
	logger.Info("seeded demo account", zap.String("email", u.Email))
	return nil
}
