package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/models"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hashkey [admin-key]",
	Short: "Print the bcrypt hash of an admin key",
	Long:  `Prints a bcrypt hash suitable for ADMIN_KEY_HASH.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key models.AdminKey
		if err := key.SetKey(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
