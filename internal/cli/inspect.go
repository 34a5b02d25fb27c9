package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database  string
	SessionID string
	Canonical bool
}

// InspectResult holds the inspection payload for one session.
type InspectResult struct {
	SessionID string              `json:"session_id"`
	LastSeq   int64               `json:"last_seq"`
	Hash      string              `json:"hash"`
	Tracks    int                 `json:"tracks"`
	Tempo     float64             `json:"tempo"`
	State     *state.SessionState `json:"state,omitempty"`
	Canonical string              `json:"canonical,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a stored session document",
		Long: `Rebuild one session from the mutation log and print its document,
canonical hash, and sequence position. Without --session, lists all
sessions in the database.

Examples:
  keyboardia inspect --db ./keyboardia.sqlite3
  keyboardia inspect --db ./keyboardia.sqlite3 --session jam-1
  keyboardia inspect --db ./keyboardia.sqlite3 --session jam-1 --canonical`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to inspect")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "emit the canonical document form")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.SessionID == "" {
		return listSessionsOutput(ctx, st, opts, cmd)
	}

	if _, err := st.SessionInfo(ctx, opts.SessionID); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("session %s", opts.SessionID), err)
	}

	doc, seq, err := st.ReplaySession(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := InspectResult{
		SessionID: opts.SessionID,
		LastSeq:   seq,
		Hash:      doc.Hash(),
		Tracks:    len(doc.Tracks),
		Tempo:     doc.Tempo,
	}
	if opts.Canonical {
		result.Canonical = string(doc.MarshalCanonical())
	} else {
		result.State = doc
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "Seq:     %d\n", result.LastSeq)
	fmt.Fprintf(w, "Hash:    %s\n", result.Hash)
	fmt.Fprintf(w, "Tracks:  %d\n", result.Tracks)
	fmt.Fprintf(w, "Tempo:   %g\n", result.Tempo)
	if opts.Canonical {
		fmt.Fprintln(w, result.Canonical)
	} else if opts.Verbose {
		pretty, err := json.MarshalIndent(result.State, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(pretty))
	}
	return nil
}

func listSessionsOutput(ctx context.Context, st *store.Store, opts *InspectOptions, cmd *cobra.Command) error {
	infos, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s  seq=%d  created=%s\n", info.ID, info.LastSeq, info.CreatedAt)
	}
	return nil
}
