package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/safenestapp/safenest/internal/config"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/store"
)

// Seeds a demo household with a senior, two caregivers and a medicine
// schedule into the configured Redis backend.
func main() {
	// Load config
	cfg := config.Load()

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr(),
		Password: cfg.Store.RedisPassword,
	})
	rs, err := store.NewRedisStore(ctx, rdb)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer rs.Close()
	log.Println("✅ Connected to Redis")

	code := "DEMO"
	now := time.Now()

	// Household meta: its existence is what makes the code joinable
	meta := model.HouseholdMeta{
		Schema:    model.SchemaVersion,
		CreatedBy: "senior-1",
		Role:      model.RoleSenior,
		UpdatedAt: now,
	}
	if err := rs.Put(ctx, store.MetaPath(code), meta); err != nil {
		log.Fatalf("❌ Failed to write household meta: %v", err)
	}

	log.Println("🌱 Seeding household members...")
	members := []model.HouseholdMember{
		{ID: "senior-1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001", JoinedAt: now.Format(time.RFC3339)},
		{ID: "caregiver-1", Name: "Alex", Role: model.RoleCaregiver, Phone: "5550000002", JoinedAt: now.Format(time.RFC3339)},
		{ID: "caregiver-2", Name: "Sam", Role: model.RoleCaregiver, Phone: "5550000003", JoinedAt: now.Format(time.RFC3339)},
	}
	for _, m := range members {
		if err := rs.Put(ctx, store.MemberPath(code, m.ID), m); err != nil {
			log.Fatalf("❌ Failed to write member %s: %v", m.Name, err)
		}
		digits := m.Phone
		if err := rs.Put(ctx, store.PhoneIndexPath(digits), map[string]string{"householdId": code, "memberId": m.ID}); err != nil {
			log.Fatalf("❌ Failed to write phone index for %s: %v", m.Name, err)
		}
		log.Printf("👤 %s (%s)", m.Name, m.Role)
	}

	log.Println("🌱 Seeding medicines...")
	medicines := []model.Medicine{
		{
			ID:        uuid.NewString(),
			Name:      "Lisinopril",
			Dosage:    "10mg",
			Frequency: 2,
			Times:     []string{"08:00", "20:00"},
			StartDate: now.AddDate(0, -1, 0),
			IsOngoing: true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:                   uuid.NewString(),
			Name:                 "Metformin",
			Dosage:               "500mg",
			Frequency:            1,
			Times:                []string{"12:00"},
			StartDate:            now.AddDate(0, -2, 0),
			IsOngoing:            true,
			CreatedAt:            now,
			UpdatedAt:            now,
			TotalQuantity:        60,
			RemainingQuantity:    14,
			RefillAlertThreshold: 10,
			IsCritical:           true,
		},
	}
	for _, med := range medicines {
		path := store.HouseholdItemPath(code, store.CategoryMedicines, med.ID)
		if err := rs.Put(ctx, path, med); err != nil {
			log.Fatalf("❌ Failed to write medicine %s: %v", med.Name, err)
		}
		log.Printf("💊 %s %s at %v", med.Name, med.Dosage, med.Times)
	}

	status := model.NewSeniorStatus("senior-1")
	status.BatteryLevel = 82
	if err := rs.Put(ctx, store.StatusPath(code), status); err != nil {
		log.Fatalf("❌ Failed to write senior status: %v", err)
	}

	fmt.Println()
	log.Printf("✅ Seeded household %s with %d members and %d medicines", code, len(members), len(medicines))
}
