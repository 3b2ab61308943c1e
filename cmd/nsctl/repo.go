package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marmos91/nameserver/pkg/config"
	"github.com/marmos91/nameserver/pkg/repo"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "List the MDS repository tables and their row counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
			stats, err := c.Repo.TableStats(ctx)
			if err != nil {
				return err
			}
			printTableStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

func printTableStats(w io.Writer, stats []repo.TableStat) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCREATED\tROWS")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%t\t%d\n", s.Name, s.Created, s.Rows)
	}
	_ = tw.Flush()
}
