package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/waypoint/internal/scene"
)

func remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running server's session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := remoteContext()
		defer cancel()

		c := newClient()
		st, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("server at %s: %w", c.URL(), err)
		}

		out := cmd.OutOrStdout()
		user := st.UserID
		if !st.LoggedIn {
			user = "(none)"
		}
		fmt.Fprintf(out, "server:   %s\n", c.URL())
		fmt.Fprintf(out, "user:     %s\n", user)
		fmt.Fprintf(out, "memories: %d (%d anchored)\n", st.Memories, st.Anchors)
		fmt.Fprintf(out, "tracking: %s, %d frames\n", st.Tracking, st.Frames)
		if st.Pose != nil {
			fmt.Fprintf(out, "pose:     %s\n", st.Pose.Position)
		}
		return nil
	},
}

// --- login command ---

var loginCmd = &cobra.Command{
	Use:   "login <user>",
	Short: "Select the current user on the running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := remoteContext()
		defer cancel()

		if err := newClient().Login(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", args[0])
		return nil
	},
}

// --- place command ---

var placePhoto string

var placeCmd = &cobra.Command{
	Use:   "place <text>",
	Short: "Leave a memory in front of the current camera pose",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var photo []byte
		if placePhoto != "" {
			var err error
			if photo, err = os.ReadFile(placePhoto); err != nil {
				return fmt.Errorf("read photo: %w", err)
			}
		}

		ctx, cancel := remoteContext()
		defer cancel()

		m, err := newClient().Place(ctx, strings.Join(args, " "), photo)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "placed %s at %s\n", m.ID, m.Position)
		return nil
	},
}

// --- tap command ---

var tapCmd = &cobra.Command{
	Use:   "tap <x> <y>",
	Short: "Resolve a screen point to the memory under it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p [2]float32
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return fmt.Errorf("coordinate %q: %w", a, err)
			}
			p[i] = float32(f)
		}

		ctx, cancel := remoteContext()
		defer cancel()

		m, ok, err := newClient().Tap(ctx, scene.Point{X: p[0], Y: p[1]})
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing there")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", m.ID, m.Text)
		return nil
	},
}

func init() {
	placeCmd.Flags().StringVar(&placePhoto, "photo", "", "attach an image file")
}
