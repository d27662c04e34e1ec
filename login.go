package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	RunE:  runLogin,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiClient()
		valid, err := client.CheckToken(cmd.Context())
		if err != nil {
			return err
		}
		if !valid {
			return fmt.Errorf("stored token is no longer valid, run `gchat login`")
		}
		u, err := client.UserInfo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s (id %d, %s)\n", u.Username, u.ID, u.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenStore().Clear()
	},
}

var (
	flagUsername string
	flagPassword string
	flagEmail    string
	flagRegister bool
)

func init() {
	loginCmd.Flags().StringVar(&flagUsername, "username", "", "account username")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "account password (prompted when omitted)")
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "email address (registration only)")
	loginCmd.Flags().BoolVar(&flagRegister, "register", false, "create a new account instead of logging in")
	rootCmd.AddCommand(loginCmd, whoamiCmd, logoutCmd)
}

func prompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := flagUsername
	password := flagPassword
	var err error
	if username == "" {
		if username, err = prompt("username"); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = prompt("password"); err != nil {
			return err
		}
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	client := apiClient()
	ctx := cmd.Context()

	var tok string
	if flagRegister {
		email := flagEmail
		if email == "" {
			if email, err = prompt("email"); err != nil {
				return err
			}
		}
		tok, err = client.Register(ctx, username, email, password)
	} else {
		tok, err = client.Login(ctx, username, password)
	}
	if err != nil {
		return err
	}

	if err := tokenStore().Save(tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Printf("logged in as %s\n", username)
	return nil
}
