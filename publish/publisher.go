// Package publish persists per-rank partitioning summaries to NATS JetStream KV.
//
// Each rank publishes a compact Summary of its Result under "<prefix>.<rank>".
// Operators and downstream services read the summaries to inspect balance and
// detect warnings without contacting the partitioner processes.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/geoparti/internal/kvutil"
	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/types"
)

// DefaultBucket is the KV bucket used by OpenBucket when none is given.
const DefaultBucket = "geoparti-results"

// ErrNotFound is returned by Load when no summary exists for a rank.
var ErrNotFound = errors.New("result summary not found")

// Summary is the persisted view of one rank's Result.
type Summary struct {
	Rank        int             `json:"rank"`
	Size        int             `json:"size"`
	Points      int             `json:"points"`
	Imports     int             `json:"imports"`
	Exports     int             `json:"exports"`
	Weight      float64         `json:"weight"`
	Levels      int             `json:"levels"`
	Fingerprint string          `json:"fingerprint"`
	Warnings    []types.Warning `json:"warnings,omitempty"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// Summarize condenses res into a Summary.
//
// Fingerprint is hex encoded; JSON numbers cannot hold a uint64 exactly.
func Summarize(res *types.Result) Summary {
	return Summary{
		Rank:        res.Rank,
		Size:        res.Size,
		Points:      len(res.Points),
		Imports:     len(res.Imports()),
		Exports:     len(res.Exports),
		Weight:      res.Weight(),
		Levels:      len(res.Levels),
		Fingerprint: fmt.Sprintf("%016x", res.Fingerprint()),
		Warnings:    res.Warnings,
	}
}

// ResultPublisher writes and reads Summaries in a KV bucket.
type ResultPublisher struct {
	kv        jetstream.KeyValue
	prefix    string
	keyPrefix string // cached "prefix."
	logger    types.Logger
}

// OpenBucket creates or opens the results bucket.
//
// Parameters:
//   - ctx: Context for cancellation
//   - js: JetStream context
//   - bucket: Bucket name (DefaultBucket when empty)
//
// Returns:
//   - jetstream.KeyValue: Bucket keeping only the latest summary per key
//   - error: Bucket creation failure after retries
func OpenBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	return kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "geoparti per-rank partition summaries",
		History:     1,
	}, kvutil.DefaultMaxRetries)
}

// NewResultPublisher creates a new result publisher.
//
// Parameters:
//   - kv: NATS KV bucket for summaries
//   - prefix: Prefix for summary keys (e.g., "mesh-42")
//   - logger: Logger for publishing events (nil for none)
//
// Returns:
//   - *ResultPublisher: A new publisher instance
func NewResultPublisher(kv jetstream.KeyValue, prefix string, logger types.Logger) *ResultPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ResultPublisher{
		kv:        kv,
		prefix:    prefix,
		keyPrefix: prefix + ".",
		logger:    logger,
	}
}

// Publish stores the summary of res under "<prefix>.<rank>", replacing any earlier one.
//
// Parameters:
//   - ctx: Context for cancellation
//   - res: Result returned by Partition
//
// Returns:
//   - uint64: KV revision of the stored summary
//   - error: Marshaling or KV failure
func (p *ResultPublisher) Publish(ctx context.Context, res *types.Result) (uint64, error) {
	summary := Summarize(res)
	summary.PublishedAt = time.Now().UTC()

	data, err := json.Marshal(summary)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal summary: %w", err)
	}

	key := p.key(res.Rank)
	rev, err := p.kv.Put(ctx, key, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish summary %s: %w", key, err)
	}

	p.logger.Debug("published result summary",
		"key", key,
		"revision", rev,
		"points", summary.Points,
		"weight", summary.Weight,
		"warnings", len(summary.Warnings),
	)

	return rev, nil
}

// Load reads the summary published by rank.
func (p *ResultPublisher) Load(ctx context.Context, rank int) (Summary, error) {
	key := p.key(rank)
	entry, err := p.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Summary{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return Summary{}, fmt.Errorf("failed to read summary %s: %w", key, err)
	}

	var summary Summary
	if err := json.Unmarshal(entry.Value(), &summary); err != nil {
		return Summary{}, fmt.Errorf("failed to unmarshal summary %s: %w", key, err)
	}

	return summary, nil
}

// LoadAll reads every summary under the prefix, ordered by rank.
//
// Malformed entries are skipped and logged.
func (p *ResultPublisher) LoadAll(ctx context.Context) ([]Summary, error) {
	keys, err := p.keys(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(keys))
	for _, key := range keys {
		rank, err := strconv.Atoi(strings.TrimPrefix(key, p.keyPrefix))
		if err != nil {
			p.logger.Debug("skipping non-summary key", "key", key)
			continue
		}

		summary, err := p.Load(ctx, rank)
		if err != nil {
			p.logger.Warn("failed to load summary", "key", key, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	slices.SortFunc(summaries, func(a, b Summary) int { return a.Rank - b.Rank })

	return summaries, nil
}

// Clear deletes every summary under the prefix.
func (p *ResultPublisher) Clear(ctx context.Context) error {
	keys, err := p.keys(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if err := p.kv.Delete(ctx, key); err != nil {
			p.logger.Warn("failed to delete summary", "key", key, "error", err)
			errs = append(errs, err)
		}
	}

	if len(keys) > 0 {
		p.logger.Info("cleared result summaries", "prefix", p.prefix, "count", len(keys)-len(errs))
	}

	return errors.Join(errs...)
}

func (p *ResultPublisher) keys(ctx context.Context) ([]string, error) {
	lister, err := p.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list KV keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	keys := make([]string, 0)
	for key := range lister.Keys() {
		if strings.HasPrefix(key, p.keyPrefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (p *ResultPublisher) key(rank int) string {
	return p.keyPrefix + strconv.Itoa(rank)
}
