package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safenestapp/safenest"
	"github.com/safenestapp/safenest/internal/config"
	"github.com/safenestapp/safenest/internal/emergency"
	"github.com/safenestapp/safenest/internal/model"
)

// Runs a senior session and a caregiver session side by side against the
// configured backend (STORE_BACKEND=memory works without any services) and
// simulates a fall so the full escalation path is visible in the logs.
func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting SafeNest demo [env=%s backend=%s]", cfg.App.Env, cfg.Store.Backend)

	ctx := context.Background()

	app, err := safenest.Open(ctx, cfg, safenest.Options{Online: true})
	if err != nil {
		log.Fatalf("❌ Failed to open app: %v", err)
	}
	defer app.Close()

	// ==================== Link a Household ====================
	code := "DEMO"
	senior := model.UserProfile{ID: "senior-1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001"}
	caregiver := model.UserProfile{ID: "caregiver-1", Name: "Alex", Role: model.RoleCaregiver, Phone: "5550000002"}

	if err := app.Households.JoinAsSenior(ctx, code, senior); err != nil {
		log.Fatalf("❌ Failed to create household: %v", err)
	}
	log.Printf("🏠 Household %s created by %s", code, senior.Name)

	// ==================== Senior Session ====================
	seniorSession, err := app.StartSeniorSession(ctx, senior, code)
	if err != nil {
		log.Fatalf("❌ Failed to start senior session: %v", err)
	}
	defer seniorSession.Close()

	seniorSession.Machine.Attach(func(t emergency.Transition) {
		log.Printf("📟 Senior UI: %s -> %s", t.From, t.To)
	})

	// ==================== Caregiver Session ====================
	caregiverSession, err := app.StartCaregiverSession(ctx, caregiver)
	if err != nil {
		log.Fatalf("❌ Failed to start caregiver session: %v", err)
	}
	defer caregiverSession.Close()

	if err := app.Households.JoinAsCaregiver(ctx, code, caregiver, caregiverSession.Coordinator); err != nil {
		log.Fatalf("❌ Failed to link caregiver: %v", err)
	}
	log.Printf("🔗 %s linked to household %s", caregiver.Name, code)

	// ==================== Simulate a Fall ====================
	go func() {
		time.Sleep(2 * time.Second)
		log.Println("💥 Simulating a fall on the senior device")
		seniorSession.Machine.Trigger(model.CauseFall)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down demo...")
}
