package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vessel-labs/vessel/internal/auth"
	"github.com/vessel-labs/vessel/internal/store"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the HTTP edge's bearer token",
	Long:  `Generate or rotate the single process-wide bearer token the HTTP edge checks on every request except /health.`,
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a new random bearer token without storing it",
	RunE:  runKeyGenerate,
}

var keyRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a new bearer token and store it, invalidating the old one",
	RunE:  runKeyRotate,
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyRotateCmd)
}

func runKeyGenerate(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	fmt.Println(key)
	return nil
}

func runKeyRotate(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.Store.StateDir, "vessel.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tx, err := st.Begin(true)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := tx.SetAuthKey(key); err != nil {
		_ = tx.Abort()
		return fmt.Errorf("set auth key: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	fmt.Printf("new bearer token (store it now, it will not be shown again):\n%s\n", key)
	return nil
}
