package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/database"
	"github.com/civica/membership-backend/internal/logger"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/repository"
	"github.com/civica/membership-backend/internal/service"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	memberService := service.NewMemberService(
		repository.NewMemberRepository(pool),
		service.NewAuthService(cfg),
	)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Administrator ===")

	firstName := prompt(reader, "First name: ")
	lastName := prompt(reader, "Last name: ")
	email := prompt(reader, "Email: ")
	if firstName == "" || lastName == "" || email == "" {
		fmt.Println("Error: first name, last name and email are required")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Println("Error: password must be at least 6 characters")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	admin, err := memberService.Create(ctx, model.CreateMemberRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      model.RoleAdmin,
		Password:  password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			fmt.Printf("Error: %s is already registered\n", email)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to create administrator")
	}

	fmt.Printf("\nSuccess! Administrator %s (%s) created with ID: %d\n", admin.DisplayName(), admin.Email, admin.ID)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
