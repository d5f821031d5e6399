package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"restaurant-pos-billing/internal/config"
	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/infra/db/postgres"
)

// Seeds a demo restaurant with an admin account so the payment flows can be
// exercised against a fresh database.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	restaurants := postgres.NewRestaurantRepo(pool)
	users := postgres.NewUserRepo(pool)

	const restaurantID = "a3bb1890-5c6d-4e7f-8a9b-0c1d2e3f4a5b"
	if _, err := restaurants.FindByID(ctx, nil, restaurantID); err == nil {
		fmt.Println("demo restaurant already present. No changes.")
		return
	} else if err != domain.ErrNotFound {
		log.Fatalf("find restaurant: %v", err)
	}

	now := time.Now()
	rest := &model.Restaurant{
		ID:        restaurantID,
		Name:      "Demo Restaurant Kinshasa",
		Active:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := restaurants.Save(ctx, nil, rest); err != nil {
		log.Fatalf("save restaurant: %v", err)
	}

	admin := &model.User{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Email:        "admin@demo-restaurant.cd",
		Role:         model.UserRoleAdmin,
		Active:       false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Save(ctx, nil, admin); err != nil {
		log.Fatalf("save admin: %v", err)
	}

	fmt.Printf("seeded restaurant %s with admin %s\n", rest.ID, admin.Email)
	fmt.Println("both stay inactive until a subscription payment is confirmed")
}
