package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/nameserver/pkg/config"
	"github.com/marmos91/nameserver/pkg/store/namespace"
)

// namespaceCommands returns the path-level subcommands.
func namespaceCommands() []*cobra.Command {
	mkdirCmd := &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				info, err := c.NameServer.MkDir(ctx, args[0])
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}

	touchCmd := &cobra.Command{
		Use:   "touch PATH SIZE",
		Short: "Create a page file of SIZE bytes (e.g. 10GiB)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			length, err := humanize.ParseBytes(args[1])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[1], err)
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				info, err := c.NameServer.CreateFile(ctx, args[0], length)
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "/"
			if len(args) == 1 {
				p = args[0]
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				entries, err := c.NameServer.ReadDir(ctx, p)
				if err != nil {
					return err
				}
				printTable(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}

	statCmd := &cobra.Command{
		Use:   "stat PATH",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				info, err := c.NameServer.Stat(ctx, args[0])
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)

				if info.FileType != namespace.FileTypePageFile {
					return nil
				}
				segments, err := c.NameServer.Segments(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Segments:   %d allocated\n", len(segments))
				for _, s := range segments {
					fmt.Fprintf(cmd.OutOrStdout(), "  offset=%d pool=%d chunks=%d epoch=%d\n",
						s.StartOffset, s.LogicalPoolID, len(s.Chunks), s.Epoch)
				}
				return nil
			})
		},
	}

	mvCmd := &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "Rename an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				return c.NameServer.Rename(ctx, args[0], args[1])
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm PATH",
		Short: "Delete a file or an empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				return c.NameServer.DeleteFile(ctx, args[0])
			})
		},
	}

	extendCmd := &cobra.Command{
		Use:   "extend PATH SIZE",
		Short: "Grow a page file to SIZE bytes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			length, err := humanize.ParseBytes(args[1])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[1], err)
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				info, err := c.NameServer.Extend(ctx, args[0], length)
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}

	allocCmd := &cobra.Command{
		Use:   "alloc PATH OFFSET",
		Short: "Allocate the segment covering OFFSET",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := humanize.ParseBytes(args[1])
			if err != nil {
				return fmt.Errorf("invalid offset %q: %w", args[1], err)
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				s, err := c.NameServer.GetOrAllocateSegment(ctx, args[0], offset)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "offset=%d pool=%d chunks=%d\n", s.StartOffset, s.LogicalPoolID, len(s.Chunks))
				return nil
			})
		},
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot PATH",
		Short: "Snapshot a page file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				info, err := c.NameServer.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}

	snapshotsCmd := &cobra.Command{
		Use:   "snapshots PATH",
		Short: "List the snapshots of a page file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				snapshots, err := c.NameServer.ListSnapshots(ctx, args[0])
				if err != nil {
					return err
				}
				printTable(cmd.OutOrStdout(), snapshots)
				return nil
			})
		},
	}

	rmsnapCmd := &cobra.Command{
		Use:   "rmsnap PATH SEQ",
		Short: "Delete the snapshot taken at sequence number SEQ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sequence number %q: %w", args[1], err)
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *config.Components) error {
				return c.NameServer.DeleteSnapshot(ctx, args[0], seq)
			})
		},
	}

	return []*cobra.Command{
		mkdirCmd, touchCmd, lsCmd, statCmd, mvCmd, rmCmd,
		extendCmd, allocCmd, snapshotCmd, snapshotsCmd, rmsnapCmd,
	}
}

func ctimeOf(info *namespace.FileInfo) time.Time {
	return time.UnixMicro(int64(info.CTime))
}

func printInfo(w io.Writer, info *namespace.FileInfo) {
	fmt.Fprintf(w, "Name:       %s\n", info.FileName)
	fmt.Fprintf(w, "Inode:      %d (parent %d)\n", info.ID, info.ParentID)
	fmt.Fprintf(w, "Type:       %s\n", info.FileType)
	fmt.Fprintf(w, "Status:     %s\n", info.FileStatus)
	fmt.Fprintf(w, "Owner:      %s\n", info.Owner)
	if info.FileType != namespace.FileTypeDirectory {
		fmt.Fprintf(w, "Length:     %s (%d bytes)\n", humanize.IBytes(info.Length), info.Length)
		fmt.Fprintf(w, "Geometry:   segment %s, chunk %s\n",
			humanize.IBytes(uint64(info.SegmentSize)), humanize.IBytes(uint64(info.ChunkSize)))
		fmt.Fprintf(w, "Seq:        %d\n", info.SeqNum)
	}
	if info.OriginalFullPathName != "" {
		fmt.Fprintf(w, "Source:     %s\n", info.OriginalFullPathName)
	}
	fmt.Fprintf(w, "Created:    %s\n", ctimeOf(info).Format(time.RFC3339))
}

func printTable(w io.Writer, entries []*namespace.FileInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "INODE\tTYPE\tSIZE\tSEQ\tSTATUS\tCREATED\tNAME")
	for _, e := range entries {
		size := "-"
		if e.FileType != namespace.FileTypeDirectory {
			size = humanize.IBytes(e.Length)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID, e.FileType, size, e.SeqNum, e.FileStatus,
			humanize.Time(ctimeOf(e)), e.FileName)
	}
	_ = tw.Flush()
}
