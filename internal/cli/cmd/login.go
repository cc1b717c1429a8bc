package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bucketdrive/backend/internal/cli/config"
	"github.com/bucketdrive/backend/internal/uploader"
	"github.com/spf13/cobra"
)

var flagPassword string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate with your BucketDrive server",
	Long: `Authenticate with an email and password and store the issued token.

  bucketdrive login you@example.com
  bucketdrive login you@example.com --password secret    (scripting only)`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := args[0]

	password := flagPassword
	if password == "" {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	// Log in with an unauthenticated client; the stored token may be stale.
	client := uploader.NewClient(cfg.ServerURL, "")
	var resp uploader.Response[struct {
		Token string        `json:"token"`
		User  uploader.User `json:"user"`
	}]
	body := map[string]string{"email": email, "password": password}
	if err := client.Post(context.Background(), "/auth/login", body, &resp); err != nil {
		var apiErr *uploader.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			return fmt.Errorf("invalid email or password")
		}
		return fmt.Errorf("logging in: %w", err)
	}

	cfg.Token = resp.Data.Token
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Logged in as %s %s (%s)\n", resp.Data.User.FirstName, resp.Data.User.LastName, resp.Data.User.Email)
	return nil
}
