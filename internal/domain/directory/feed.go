package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/platform/callstore"
)

// Category is one of the three directory views.
type Category string

const (
	CategoryUpcoming   Category = "upcoming"
	CategoryEnded      Category = "ended"
	CategoryRecordings Category = "recordings"
)

// Notifier is told when a snapshot changed, so connected clients can
// re-fetch. Implementations must not block.
type Notifier interface {
	NotifyChanged(userID, category, day string)
}

// Snapshot is the latest known answer for one (user, category, day). On a
// failed refresh the previous data is retained and Err records the failure;
// a successful earlier result is never cleared by a failed refresh.
type Snapshot struct {
	Calls         []callstore.Call     `json:"calls,omitempty"`
	Recordings    []RecordingEntry `json:"recordings,omitempty"`
	FailedCallIDs []string         `json:"failed_call_ids,omitempty"`
	Err           error            `json:"-"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Feed serves directory snapshots and keeps them fresh on a fixed polling
// interval. Every refresh carries a monotonically increasing request token;
// a refresh result is applied only if no newer refresh for the same key has
// completed, so a slow stale response can never overwrite a newer one.
type Feed struct {
	svc *Service
	log zerolog.Logger

	mu      sync.Mutex
	entries map[feedKey]*feedEntry
	seq     atomic.Uint64

	cron     *cron.Cron
	notifier Notifier
	ttl      time.Duration
}

type feedKey struct {
	userID   string
	category Category
	day      string
}

type feedEntry struct {
	window       Window
	snap         Snapshot
	appliedToken uint64
	lastRead     time.Time
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithNotifier makes the feed announce snapshot changes.
func WithNotifier(n Notifier) FeedOption {
	return func(f *Feed) { f.notifier = n }
}

// WithTTL sets how long an unread snapshot is kept polled before it is
// dropped.
func WithTTL(d time.Duration) FeedOption {
	return func(f *Feed) { f.ttl = d }
}

// NewFeed creates a feed over the given service.
func NewFeed(svc *Service, logger zerolog.Logger, opts ...FeedOption) *Feed {
	f := &Feed{
		svc:     svc,
		log:     logger.With().Str("component", "directory-feed").Logger(),
		entries: make(map[feedKey]*feedEntry),
		ttl:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start begins the background polling loops: calls (upcoming and ended) on
// one interval, recordings on another.
func (f *Feed) Start(callsEvery, recordingsEvery time.Duration) error {
	if f.cron != nil {
		return errors.New("feed already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", callsEvery), func() {
		f.refreshAll(CategoryUpcoming, CategoryEnded)
	}); err != nil {
		return fmt.Errorf("schedule calls refresh: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", recordingsEvery), func() {
		f.refreshAll(CategoryRecordings)
	}); err != nil {
		return fmt.Errorf("schedule recordings refresh: %w", err)
	}
	c.Start()
	f.cron = c
	return nil
}

// Stop halts the polling loops. In-flight refreshes finish on their own;
// their results still go through the token check.
func (f *Feed) Stop() {
	if f.cron != nil {
		f.cron.Stop()
		f.cron = nil
	}
}

// Get returns the snapshot for the key, fetching synchronously when the key
// is seen for the first time. Reading a key keeps it in the polling set.
func (f *Feed) Get(ctx context.Context, userID string, category Category, w Window) (Snapshot, error) {
	k := feedKey{userID: userID, category: category, day: w.Day()}

	f.mu.Lock()
	entry, ok := f.entries[k]
	if ok {
		entry.lastRead = time.Now()
		entry.window = w
		snap := entry.snap
		f.mu.Unlock()
		return snap, nil
	}
	entry = &feedEntry{window: w, lastRead: time.Now()}
	f.entries[k] = entry
	f.mu.Unlock()

	if err := f.refresh(ctx, k); err != nil {
		// First load failed: there is no last good data to fall back on.
		f.mu.Lock()
		delete(f.entries, k)
		f.mu.Unlock()
		return Snapshot{}, err
	}

	f.mu.Lock()
	snap := entry.snap
	f.mu.Unlock()
	return snap, nil
}

// refreshAll re-fetches every live key in the given categories and expires
// keys nobody has read recently.
func (f *Feed) refreshAll(categories ...Category) {
	wanted := make(map[Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	f.mu.Lock()
	var keys []feedKey
	for k, entry := range f.entries {
		if time.Since(entry.lastRead) > f.ttl {
			delete(f.entries, k)
			continue
		}
		if wanted[k.category] {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()

	for _, k := range keys {
		if err := f.refresh(context.Background(), k); err != nil {
			f.log.Warn().
				Str("user_id", k.userID).
				Str("category", string(k.category)).
				Str("day", k.day).
				Err(err).
				Msg("refresh failed; keeping last good snapshot")
		}
	}
}

// refresh re-runs the query behind one key and applies the result unless a
// newer refresh has already been applied.
func (f *Feed) refresh(ctx context.Context, k feedKey) error {
	f.mu.Lock()
	entry, ok := f.entries[k]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	w := entry.window
	f.mu.Unlock()

	token := f.seq.Add(1)

	var snap Snapshot
	var err error
	switch k.category {
	case CategoryUpcoming:
		snap.Calls, err = f.queryCalls(ctx, k.userID, w, true)
	case CategoryEnded:
		snap.Calls, err = f.queryCalls(ctx, k.userID, w, false)
	case CategoryRecordings:
		var partial *PartialError
		snap.Recordings, partial, err = f.queryRecordings(ctx, k.userID, w)
		if partial != nil {
			snap.FailedCallIDs = partial.FailedCallIDs
		}
	default:
		return fmt.Errorf("unknown category %q", k.category)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok = f.entries[k]
	if !ok {
		return err
	}
	if token < entry.appliedToken {
		// A newer refresh finished while this one was in flight.
		f.log.Debug().
			Str("user_id", k.userID).
			Str("category", string(k.category)).
			Msg("discarding stale refresh result")
		return nil
	}
	entry.appliedToken = token

	if err != nil {
		entry.snap.Err = err
		return err
	}
	snap.UpdatedAt = time.Now()
	entry.snap = snap

	if f.notifier != nil {
		f.notifier.NotifyChanged(k.userID, string(k.category), k.day)
	}
	return nil
}

func (f *Feed) queryCalls(ctx context.Context, userID string, w Window, upcoming bool) ([]callstore.Call, error) {
	if upcoming {
		return f.svc.ListUpcoming(ctx, userID, w)
	}
	return f.svc.ListEnded(ctx, userID, w)
}

func (f *Feed) queryRecordings(ctx context.Context, userID string, w Window) ([]RecordingEntry, *PartialError, error) {
	entries, err := f.svc.ListRecordings(ctx, userID, w)
	if err != nil {
		var partial *PartialError
		if errors.As(err, &partial) {
			return entries, partial, nil
		}
		return nil, nil, err
	}
	return entries, nil, nil
}
