package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/civica/membership-backend/internal/apiclient"
	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/logger"
	"github.com/civica/membership-backend/internal/mandate"
)

const programName = "mandates"

var globalFlags = struct {
	apiURL   string
	token    string
	email    string
	memberID int
	debug    bool
}{}

// session is what every subcommand works against.
type session struct {
	client *apiclient.Client
	store  *mandate.Store
	log    zerolog.Logger
}

func newSession(ctx context.Context, cfg *config.ClientConfig) (*session, error) {
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	log := logger.Component(logger.New(os.Stderr, level, cfg.LogFormat), programName)

	baseURL := cfg.APIBaseURL
	if globalFlags.apiURL != "" {
		baseURL = globalFlags.apiURL
	}
	token := cfg.APIToken
	if globalFlags.token != "" {
		token = globalFlags.token
	}

	client := apiclient.New(baseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithToken(token),
		apiclient.WithLogger(log),
	)

	if globalFlags.email != "" {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		if _, err := client.Login(ctx, globalFlags.email, string(password)); err != nil {
			return nil, err
		}
	}

	if globalFlags.memberID <= 0 {
		return nil, errors.New("--member is required")
	}

	store := mandate.NewStore(client, globalFlags.memberID,
		mandate.WithLogger(log),
		mandate.WithRequestTimeout(cfg.APITimeout),
	)
	return &session{client: client, store: store, log: log}, nil
}

// withSession adapts a session-aware handler to cobra.
func withSession(run func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), config.LoadClient())
		if err != nil {
			return err
		}
		return run(cmd, args, s)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Inspect and edit a member's role mandates through the membership API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.apiURL, "api", "", "API base URL (default $API_BASE_URL)")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.token, "token", "", "bearer token (default $API_TOKEN)")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.email, "login", "", "log in with this email, prompting for the password")
	rootCmd.PersistentFlags().
		IntVarP(&globalFlags.memberID, "member", "m", 0, "member id")
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	// Subcommands
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(notificationsCommand())
	rootCmd.AddCommand(addCommand())
	rootCmd.AddCommand(updateCommand())
	rootCmd.AddCommand(deleteCommand())
	rootCmd.AddCommand(exportCommand())
	rootCmd.AddCommand(watchCommand())
	return rootCmd
}

func main() {
	rootCmd := newRootCommand()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		os.Exit(1)
	}
}

// userMessage prefers the text meant for people over wrapped error chains.
func userMessage(err error) string {
	var mutErr *mandate.MutationError
	if errors.As(err, &mutErr) {
		return mutErr.UserMessage()
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}
