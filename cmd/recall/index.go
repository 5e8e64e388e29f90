package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/render"
	"github.com/joss/recall/internal/source"
)

func indexCmd() *cobra.Command {
	var dbPath string
	var outPath string
	var projectID string
	var sessionID string
	var repoDir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Snapshot the session store into a source index",
		Long: `Read the external chat-session store and write the source index
artifact: one entry per session with its activity timestamps and a
content fingerprint.

Examples:
  recall index                       # Index every session
  recall index --project prj_123     # One project only
  recall index --repo ~/src/myapp    # Project resolved by worktree
  recall index --session ses_456     # A single session`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if dbPath == "" {
				dbPath = cfg.StoreDB
			}
			if outPath == "" {
				outPath = cfg.SourceIndexPath()
			}

			st, err := source.Open(dbPath)
			if err != nil {
				exitErr(err)
			}
			defer st.Close()

			if repoDir != "" {
				proj, err := st.ProjectForWorktree(ctx, repoDir)
				if err != nil {
					exitErr(err)
				}
				if proj == nil {
					exitErr(fmt.Errorf("no project found for worktree %s", repoDir))
				}
				projectID = proj.ID
			}

			idx, err := source.BuildIndex(ctx, st, source.Options{
				ProjectID: projectID,
				SessionID: sessionID,
			})
			if err != nil {
				exitErr(err)
			}

			if err := artifact.WriteJSON(outPath, idx); err != nil {
				exitErr(err)
			}

			if jsonOut {
				printJSON(idx)
				return
			}
			r := render.New(pretty)
			fmt.Print(r.SourceIndex(idx, outPath))
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the session store (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Where to write the source index")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Restrict to one project id")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Restrict to one session id")
	cmd.Flags().StringVar(&repoDir, "repo", "", "Resolve the project by repository worktree path")

	return cmd
}
