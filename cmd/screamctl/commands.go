package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/screamboard/screamboard/internal/scream"
	"github.com/screamboard/screamboard/internal/weeks"
)

var archiveWeekID string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the current week's top screams",
	Long: `Archive the current week's top-voted screams under a week id. The id
defaults to the current ISO week (YYYY-WW). A week can only be archived once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		ctx := cmd.Context()
		weekID := archiveWeekID
		var n int
		if weekID == "" {
			weekID, n, err = e.board.ArchiveCurrentWeek(ctx, scream.TriggerCLI)
		} else {
			n, err = e.board.ArchiveWeek(ctx, weekID, scream.TriggerCLI)
			if id, ok := weeks.CanonicalWeekID(weekID); ok {
				weekID = id
			}
		}
		if errors.Is(err, scream.ErrWeekAlreadyArchived) {
			return fmt.Errorf("week %s is already archived", weekID)
		}
		if err != nil {
			return err
		}

		return printResult(map[string]interface{}{"week_id": weekID, "archived": n}, func() {
			fmt.Printf("Archived %d screams for week %s\n", n, weekID)
		})
	},
}

var revokeAdmin bool

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin <user-id>",
	Short: "Grant or revoke admin privileges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		id, err := e.hasher.Hash(args[0])
		if err != nil {
			return err
		}

		if revokeAdmin {
			revoked, err := e.board.RevokeAdmin(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printResult(map[string]interface{}{"revoked": revoked}, func() {
				if revoked {
					fmt.Printf("Revoked admin privileges from %s\n", args[0])
				} else {
					fmt.Printf("%s is not an admin\n", args[0])
				}
			})
		}

		status, err := e.board.EnsureAdmin(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printResult(map[string]interface{}{"status": status}, func() {
			if status == scream.AlreadyAdmin {
				fmt.Printf("%s is already an admin\n", args[0])
			} else {
				fmt.Printf("Granted admin privileges to %s\n", args[0])
			}
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [week-id]",
	Short: "List archived weeks or show one week's archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if len(args) == 0 {
			archived, err := e.board.ListArchivedWeeks(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(archived, func() {
				if len(archived) == 0 {
					fmt.Println("No archived weeks")
				}
				for _, w := range archived {
					fmt.Printf("%-10s %3d screams  archived %s\n", w.WeekID, w.PostCount, w.ArchivedAt.Format("2006-01-02 15:04"))
				}
			})
		}

		entries, err := e.board.GetArchivedWeek(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(entries, func() {
			fmt.Printf("Week %s\n", args[0])
			for _, entry := range entries {
				fmt.Printf("%2d. [%d votes] %s\n", entry.Place, entry.Votes, entry.Content)
			}
		})
	},
}

var statsUserID string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the platform's daily scream counts, or one user's stats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if statsUserID == "" {
			series, err := e.board.PlatformDailySeries(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(series, func() { printSeries(series) })
		}

		id, err := e.hasher.Hash(statsUserID)
		if err != nil {
			return err
		}
		stats, err := e.board.UserStats(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printResult(stats, func() {
			fmt.Printf("Screams posted:     %d\n", stats.PostsTotal)
			fmt.Printf("Reactions given:    %d\n", stats.ReactionsGiven)
			fmt.Printf("Reactions received: %d\n", stats.ReactionsReceived)
			printSeries(stats.Daily)
			for _, ec := range stats.Emojis {
				fmt.Printf("  %s %d\n", ec.Emoji, ec.Count)
			}
		})
	},
}

func printSeries(series scream.DailySeries) {
	for i := 0; i < weeks.SeriesDays; i++ {
		fmt.Printf("%s %-4d %s\n", series.Labels[i], series.Counts[i], strings.Repeat("#", int(series.Counts[i])))
	}
}

func init() {
	archiveCmd.Flags().StringVar(&archiveWeekID, "week", "", "Week id to archive under (default: current ISO week)")
	promoteAdminCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "Revoke admin privileges instead of granting")
	statsCmd.Flags().StringVar(&statsUserID, "user", "", "Show stats for this user id")
}
