// Command cli is an interactive client for the login API: it registers
// accounts, logs in with a hidden password prompt, and inspects the current
// session.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/loginapp/internal/client"
)

var serverURL string

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func promptPassword() (string, error) {
	fmt.Print("Enter password: ")
	b, err := readPassword()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func registerCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}

			password, err := promptPassword()
			if err != nil {
				return err
			}

			c := client.New(serverURL)
			user, err := c.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			fmt.Printf("Registered %s (created %s)\n", user.Username, user.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username to register")

	return cmd
}

func loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the session and access tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}

			password, err := promptPassword()
			if err != nil {
				return err
			}

			c := client.New(serverURL)
			result, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			fmt.Printf("Welcome, %s!\n", result.User.Username)
			fmt.Printf("session token: %s\n", result.SessionToken)
			fmt.Printf("access token:  %s\n", result.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username to log in as")

	return cmd
}

func whoamiCmd() *cobra.Command {
	var sessionToken string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account bound to a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionToken == "" {
				return fmt.Errorf("session token is required")
			}

			c := client.New(serverURL)
			user, err := c.Me(cmd.Context(), sessionToken)
			if err != nil {
				return err
			}

			fmt.Printf("%s (registered %s)\n", user.Username, user.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionToken, "session", "", "Session token from a previous login")

	return cmd
}

func logoutCmd() *cobra.Command {
	var sessionToken string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Destroy a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionToken == "" {
				return fmt.Errorf("session token is required")
			}

			c := client.New(serverURL)
			if err := c.Logout(cmd.Context(), sessionToken); err != nil {
				return err
			}

			fmt.Println("Logged out.")
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionToken, "session", "", "Session token from a previous login")

	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "loginapp",
		Short: "Client for the login API",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the login API")

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(logoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
