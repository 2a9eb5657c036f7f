// File: cmd/notes.go
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/observability"
	"github.com/xkilldash9x/axpilot/internal/store"
)

func newNotesCmd() *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "Inspect and edit the agent's persisted notes",
	}
	notesCmd.AddCommand(newNotesListCmd(), newNotesAddCmd(), newNotesDeleteCmd())
	return notesCmd
}

// withNoteStore opens the configured store for the duration of fn.
func withNoteStore(cmd *cobra.Command, fn func(schemas.NoteStore) error) error {
	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger := observability.GetLogger()
	notes, err := newNoteStore(cmd.Context(), cfg.Memory(), logger)
	if err != nil {
		return fmt.Errorf("failed to open notes store: %w", err)
	}
	defer func() {
		if cerr := notes.Close(); cerr != nil {
			logger.Warn("Failed to close notes store.", zap.Error(cerr))
		}
	}()
	return fn(notes)
}

func newNotesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notes in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNoteStore(cmd, func(notes schemas.NoteStore) error {
				all, err := notes.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing notes: %w", err)
				}
				if len(all) == 0 {
					cmd.Println("No notes.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCREATED\tCONTENT")
				for _, n := range all {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Title, n.Timestamp.Format(time.RFC3339), oneLine(n.Content))
				}
				return tw.Flush()
			})
		},
	}
}

func newNotesAddCmd() *cobra.Command {
	var title string
	addCmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Append a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return errors.New("note text must not be empty")
			}
			if title == "" {
				title = fmt.Sprintf("Memory_%d", time.Now().UnixMilli())
			}
			return withNoteStore(cmd, func(notes schemas.NoteStore) error {
				n, err := notes.Append(cmd.Context(), title, content)
				if err != nil {
					return fmt.Errorf("adding note: %w", err)
				}
				cmd.Println(n.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVarP(&title, "title", "t", "", "note title (default Memory_<unix millis>)")
	return addCmd
}

func newNotesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete notes by id",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNoteStore(cmd, func(notes schemas.NoteStore) error {
				var errs []error
				for _, id := range args {
					err := notes.Delete(cmd.Context(), id)
					switch {
					case errors.Is(err, store.ErrNoteNotFound):
						errs = append(errs, fmt.Errorf("note %s not found", id))
					case err != nil:
						errs = append(errs, fmt.Errorf("deleting note %s: %w", id, err))
					default:
						cmd.Printf("Deleted %s\n", id)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
