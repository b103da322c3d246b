package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docdash/internal/identity"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE:  runWhoami,
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "End the current session",
	RunE:  runSignout,
}

var mintTokenCmd = &cobra.Command{
	Use:   "mint-token",
	Short: "Mint a custom sign-in token",
	Long: `Mint a custom token for the given user id. The token is redeemed with
"dash --token <token>" and must be signed with the server's JWT_SECRET.`,
	RunE: runMintToken,
}

var (
	mintUID string
	mintTTL time.Duration
)

func init() {
	mintTokenCmd.Flags().StringVar(&mintUID, "uid", "", "User id the token signs in as")
	mintTokenCmd.Flags().DurationVar(&mintTTL, "ttl", time.Hour, "Token lifetime")
	_ = mintTokenCmd.MarkFlagRequired("uid")

	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(signoutCmd)
	rootCmd.AddCommand(mintTokenCmd)
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	id, ok, err := c.CurrentSession(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	if !ok {
		cmd.Println("Not signed in")
		return nil
	}
	kind := "user"
	if id.Anonymous {
		kind = "anonymous"
	}
	cmd.Printf("%s (%s)\n", id.ID, kind)
	return nil
}

func runSignout(cmd *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.SignOut(cmdContext(cmd)); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	cmd.Println("Signed out")
	return nil
}

func runMintToken(cmd *cobra.Command, _ []string) error {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	tok, err := identity.NewSigner(secret).IssueCustom(mintUID, mintTTL)
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}
	cmd.Println(tok)
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
