// Package gc reclaims orphaned segments.
//
// A segment is orphaned when no live file or snapshot record carries its
// inode id. This can occur due to:
//   - A crash between allocating a segment and recording it on the file
//   - Records written by tools that bypass the name server
//   - A delete that removed the file record but not all of its segments
//
// The collector runs in the background next to the name server, or once on
// demand.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/internal/ratelimiter"
	"github.com/marmos91/nameserver/pkg/store/namespace"
)

// SegmentStore is what the collector needs from the namespace store.
type SegmentStore interface {
	namespace.NameServerStorage

	// SegmentInodes returns every inode id owning at least one segment.
	SegmentInodes(ctx context.Context) ([]namespace.InodeID, error)
}

var _ SegmentStore = (*namespace.Store)(nil)

// Collector periodically deletes orphaned segments.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store   SegmentStore
	config  Config
	limiter *ratelimiter.Limiter
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection runs (default: false)
	Enabled bool

	// Interval is how often to run garbage collection (default: 1h)
	Interval time.Duration

	// BatchSize is how many orphaned inodes are reclaimed between
	// cancellation checks (default: 100)
	BatchSize int

	// DryRun logs what would be deleted without deleting
	DryRun bool

	// DeleteRate caps segment deletions per second (0 = unlimited)
	DeleteRate uint
}

// NewCollector creates a collector over store. It is not started.
func NewCollector(store SegmentStore, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Collector{
		store:   store,
		config:  config,
		limiter: ratelimiter.New(config.DeleteRate, 0),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins background garbage collection. It must be paired with Stop.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Segment garbage collection disabled")
		close(c.doneCh)
		return
	}

	logger.Info("Starting segment collector: interval=%s batch_size=%d dry_run=%v delete_rate=%d",
		c.config.Interval, c.config.BatchSize, c.config.DryRun, c.config.DeleteRate)

	go c.worker()
}

// Stop stops the collector and waits for an in-progress run to finish or
// for ctx to expire.
func (c *Collector) Stop(ctx context.Context) error {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		logger.Warn("Segment collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.Interval)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Segment collection failed: %v", err)
			} else {
				logger.With(map[string]any{
					"orphaned": stats.OrphanedCount,
					"deleted":  stats.DeletedCount,
					"failed":   stats.FailedCount,
				}).Infof("Segment collection completed in %s", stats.Duration())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. List the inodes owning segments
//  2. List the inode ids of every live file and snapshot
//  3. Delete the segments of inodes missing from step 2
//
// Segments are listed before files: a file record always exists before its
// first segment, so an inode seen in step 1 is either still named in step 2
// or was deleted in between.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	owners, err := c.store.SegmentInodes(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list segment owners: %w", err)
	}
	stats.OwnerCount = uint64(len(owners))

	live, err := c.liveInodes(ctx)
	if err != nil {
		return stats, err
	}
	stats.LiveCount = uint64(len(live))

	orphaned := make([]namespace.InodeID, 0)
	for _, id := range owners {
		if _, ok := live[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would reclaim segments of %d inodes", len(orphaned))
		for i, id := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - inode %d", id)
		}
		return stats, nil
	}

	for i, id := range orphaned {
		if i%c.config.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if err := c.reclaim(ctx, id, stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// liveInodes returns the ids named by live file and snapshot records.
func (c *Collector) liveInodes(ctx context.Context) (map[namespace.InodeID]struct{}, error) {
	start, end := namespace.FilePrefixRange()
	files, err := c.store.ListFile(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	snapshots, err := c.store.LoadSnapShotFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	live := make(map[namespace.InodeID]struct{}, len(files)+len(snapshots))
	for _, f := range files {
		live[f.ID] = struct{}{}
	}
	for _, s := range snapshots {
		live[s.ID] = struct{}{}
	}
	return live, nil
}

// reclaim deletes the segments of one orphaned inode. Segments deleted
// concurrently by someone else are skipped. Only a cancelled ctx is
// returned; store failures are counted.
func (c *Collector) reclaim(ctx context.Context, id namespace.InodeID, stats *Stats) error {
	segments, err := c.store.ListSegment(ctx, id)
	if err != nil {
		logger.Warn("GC: failed to list segments of inode %d: %v", id, err)
		stats.FailedCount++
		return nil
	}

	for _, segment := range segments {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		key := namespace.EncodeSegmentStoreKey(id, segment.StartOffset)
		err := c.store.DeleteSegment(ctx, key)
		switch {
		case err == nil:
			stats.DeletedCount++
		case namespace.IsNotExist(err):
		default:
			logger.Debug("GC: failed to delete segment %d@%d: %v", id, segment.StartOffset, err)
			stats.FailedCount++
		}
	}
	return nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime     time.Time // When collection started
	EndTime       time.Time // When collection ended
	OwnerCount    uint64    // Inodes owning at least one segment
	LiveCount     uint64    // Inode ids named by file and snapshot records
	OrphanedCount uint64    // Segment owners with no record
	DeletedCount  uint64    // Segments deleted
	FailedCount   uint64    // Segments (or inodes) that could not be reclaimed
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("owners=%d live=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.OwnerCount, s.LiveCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
