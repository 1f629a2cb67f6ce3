package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/database"
	"github.com/civica/membership-backend/internal/logger"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/repository"
	"github.com/civica/membership-backend/internal/service"
)

// seedPassword is shared by every seeded account. Development only.
const seedPassword = "membership"

type seedMandate struct {
	role       model.MandateRole
	startYears int // relative to today, negative is in the past
	endDays    int // relative to today
	active     bool
}

type seedMember struct {
	first, last string
	role        model.MandateRole
	mandates    []seedMandate
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	memberRepo := repository.NewMemberRepository(pool)
	memberService := service.NewMemberService(memberRepo, service.NewAuthService(cfg))
	notificationService := service.NewNotificationService(rdb, cfg, log)
	mandateService := service.NewMandateService(
		repository.NewMandateRepository(pool), memberRepo, notificationService, rdb, cfg, log,
	)

	// Each profile exercises one notification path: an upcoming expiry, an
	// overlap, an already expired active mandate, and a quiet history.
	members := []seedMember{
		{"Maria", "Schmidt", model.RolePresident, []seedMandate{
			{model.RolePresident, -2, 14, true},
			{model.RoleVicePresidentCommission, -5, -800, false},
		}},
		{"Jonas", "Weber", model.RoleSecretary, []seedMandate{
			{model.RoleSecretary, -1, 200, true},
			{model.RoleSecretary, 0, 500, true},
		}},
		{"Lea", "Fischer", model.RoleTreasurer, []seedMandate{
			{model.RoleTreasurer, -3, -20, true},
		}},
		{"Paul", "Wagner", model.RoleMember, []seedMandate{
			{model.RoleMember, -4, -400, false},
		}},
	}

	fmt.Printf("=== Seeding %d members ===\n", len(members))

	today := model.Today()
	successCount := 0
	for _, sm := range members {
		email := fmt.Sprintf("%s.%s@example.org", strings.ToLower(sm.first), strings.ToLower(sm.last))

		member, err := memberService.Create(ctx, model.CreateMemberRequest{
			FirstName: sm.first,
			LastName:  sm.last,
			Email:     email,
			Role:      sm.role,
			Password:  seedPassword,
		})
		if err != nil {
			if errors.Is(err, service.ErrEmailTaken) {
				fmt.Printf("Skipping %s: already seeded\n", email)
				continue
			}
			log.Fatal().Err(err).Str("email", email).Msg("Failed to create member")
		}

		for _, sd := range sm.mandates {
			active := sd.active
			start := today.Time().AddDate(sd.startYears, 0, 0)
			_, err := mandateService.Create(ctx, member.ID, model.CreateMandateRequest{
				Role:      sd.role,
				StartDate: model.DateOf(start).String(),
				EndDate:   today.AddDays(sd.endDays).String(),
				IsActive:  &active,
			})
			if err != nil {
				fmt.Printf("Error creating %s mandate for %s: %v\n", sd.role, email, err)
			}
		}
		successCount++
		fmt.Printf("Created %s (%s) with %d mandates\n", member.DisplayName(), email, len(sm.mandates))
	}

	fmt.Printf("\nSeed completed! Added %d/%d members. Password: %q\n", successCount, len(members), seedPassword)
}
