package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local users",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Register a new user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		u, err := db.CreateUser(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		users, err := db.ListUsers()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tEMAIL\tID\tLAST LOGIN")
		for _, u := range users {
			last := "never"
			if u.LastLoginAt != nil {
				last = time.UnixMilli(*u.LastLoginAt).Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Email, u.ID, last)
		}
		return tw.Flush()
	},
}

func init() {
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userListCmd)
}
