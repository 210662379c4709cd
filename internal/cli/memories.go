package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/waypoint/internal/memory"
)

var (
	memoriesUser string
	exportOut    string
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "List, clear or export memories",
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories of the current user, or of --user from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			ms  []memory.Memory
			err error
		)
		if memoriesUser != "" {
			_, ms, err = storedMemories(memoriesUser)
		} else {
			ctx, cancel := remoteContext()
			defer cancel()
			ms, err = newClient().Memories(ctx)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(ms) == 0 {
			fmt.Fprintln(out, "No memories.")
			return nil
		}
		for i, m := range ms {
			photo := ""
			if m.HasPhoto() {
				photo = " [photo]"
			}
			fmt.Fprintf(out, "%d. %s%s\n", i+1, m.Text, photo)
			fmt.Fprintf(out, "   %s at %s, %s\n", m.ID, m.Position, m.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var memoriesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every memory of the current user, or of --user in the database",
	Long: `Without --user, clears the current user on the running server.
With --user, deletes the user's stored set directly. Do this while the
server is stopped or logged in as someone else, or its next save will
write the set back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if memoriesUser != "" {
			return clearStored(cmd.OutOrStdout(), memoriesUser)
		}
		ctx, cancel := remoteContext()
		defer cancel()

		n, err := newClient().Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d memories\n", n)
		return nil
	},
}

var memoriesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's stored memories as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if memoriesUser == "" {
			return fmt.Errorf("--user is required")
		}
		owner, ms, err := storedMemories(memoriesUser)
		if err != nil {
			return err
		}
		if ms == nil {
			ms = []memory.Memory{}
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"owner_id": owner,
			"memories": ms,
		})
	},
}

// storedMemories reads what the database holds for a user, by id or name.
func storedMemories(userRef string) (string, []memory.Memory, error) {
	db, err := openDB()
	if err != nil {
		return "", nil, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	u, err := db.ResolveUser(userRef)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", userRef, err)
	}
	set, err := db.GetMemorySet(u.ID)
	if err != nil {
		return "", nil, err
	}
	if set == nil {
		return u.ID, nil, nil
	}
	owner, ms, err := memory.Decode(set.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode memories of %s: %w", u.Username, err)
	}
	if owner != u.ID {
		return "", nil, fmt.Errorf("stored memories of %s belong to %s", u.Username, owner)
	}
	return owner, ms, nil
}

func clearStored(w io.Writer, userRef string) error {
	owner, ms, err := storedMemories(userRef)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := db.DeleteMemorySet(owner); err != nil {
		return err
	}
	fmt.Fprintf(w, "removed %d memories\n", len(ms))
	return nil
}

func init() {
	memoriesCmd.PersistentFlags().StringVar(&memoriesUser, "user", "", "act on this user in the database instead of the server")
	memoriesExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")

	memoriesCmd.AddCommand(memoriesListCmd)
	memoriesCmd.AddCommand(memoriesClearCmd)
	memoriesCmd.AddCommand(memoriesExportCmd)
}
