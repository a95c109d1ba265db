package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/telemed/telemed/internal/platform/callstore"
)

// Service answers the three directory questions for a user and a day:
// which calls are upcoming, which have ended, and which have recordings.
type Service struct {
	store callstore.Client
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a directory service over the given call store.
func NewService(store callstore.Client, logger zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   logger.With().Str("component", "directory").Logger(),
		now:   time.Now,
	}
}

// ListUpcoming returns the user's calls in the window that have not started
// yet, soonest first.
//
// The store's own "now" can lag the client's at window boundaries, so the
// remote result is treated as a candidate set: records are re-filtered
// against the local clock and re-sorted before they are returned.
func (s *Service) ListUpcoming(ctx context.Context, userID string, w Window) ([]callstore.Call, error) {
	candidates, err := s.store.QueryCalls(ctx, callstore.Query{
		Filter: callstore.And(
			callstore.Gte(callstore.FieldStartsAt, w.WireStart()),
			callstore.Lte(callstore.FieldStartsAt, w.WireEnd()),
			callstore.VisibleTo(userID),
		),
		Sort: []callstore.Sort{callstore.SortAsc(callstore.FieldStartsAt)},
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming calls: %w", err)
	}

	now := s.now()
	upcoming := make([]callstore.Call, 0, len(candidates))
	for _, c := range candidates {
		if c.StartsAt != nil && c.StartsAt.After(now) {
			upcoming = append(upcoming, c)
		}
	}
	sortCallsByStart(upcoming, true)
	return upcoming, nil
}

// NextUpcoming returns the user's soonest upcoming call in the window, or
// nil when there is none.
func (s *Service) NextUpcoming(ctx context.Context, userID string, w Window) (*callstore.Call, error) {
	upcoming, err := s.ListUpcoming(ctx, userID, w)
	if err != nil {
		return nil, err
	}
	if len(upcoming) == 0 {
		return nil, nil
	}
	return &upcoming[0], nil
}

// ListEnded returns the user's calls in the window that have ended or whose
// start time has passed, most recent first.
func (s *Service) ListEnded(ctx context.Context, userID string, w Window) ([]callstore.Call, error) {
	calls, err := s.store.QueryCalls(ctx, callstore.Query{
		Filter: s.endedFilter(userID, w),
		Sort:   []callstore.Sort{callstore.SortDesc(callstore.FieldStartsAt)},
	})
	if err != nil {
		return nil, fmt.Errorf("list ended calls: %w", err)
	}
	sortCallsByStart(calls, false)
	return calls, nil
}

// endedFilter matches the user's calls in the window that are over: ended_at
// is set, or starts_at lies in the past.
func (s *Service) endedFilter(userID string, w Window) callstore.Expr {
	return callstore.And(
		callstore.Gte(callstore.FieldStartsAt, w.WireStart()),
		callstore.Lte(callstore.FieldStartsAt, w.WireEnd()),
		callstore.Or(
			callstore.Exists(callstore.FieldEndedAt),
			callstore.Lt(callstore.FieldStartsAt, s.now().Format(time.RFC3339)),
		),
		callstore.VisibleTo(userID),
	)
}

// ListRecordings returns all recordings of the user's past calls in the
// window, newest first, each annotated with its parent call's metadata.
//
// The per-call recording queries fan out concurrently: all are issued before
// any is awaited, so latency is bounded by the slowest call, not the sum. A
// failure on one call does not abort the others; when some fail, the
// successful subset is returned together with a PartialError naming the
// failed calls.
func (s *Service) ListRecordings(ctx context.Context, userID string, w Window) ([]RecordingEntry, error) {
	candidates, err := s.store.QueryCalls(ctx, callstore.Query{
		Filter: s.endedFilter(userID, w),
	})
	if err != nil {
		return nil, fmt.Errorf("list recording candidates: %w", err)
	}

	type result struct {
		recordings []callstore.Recording
		err        error
	}
	results := make([]result, len(candidates))

	var wg sync.WaitGroup
	for i, call := range candidates {
		wg.Add(1)
		go func(i int, callID string) {
			defer wg.Done()
			recs, err := s.store.QueryRecordings(ctx, callID)
			results[i] = result{recordings: recs, err: err}
		}(i, call.ID)
	}
	wg.Wait()

	var entries []RecordingEntry
	var failed []string
	var errs error
	for i, call := range candidates {
		if results[i].err != nil {
			failed = append(failed, call.ID)
			errs = multierr.Append(errs, fmt.Errorf("call %s: %w", call.ID, results[i].err))
			continue
		}
		for _, rec := range results[i].recordings {
			entries = append(entries, RecordingEntry{
				URL:          rec.URL,
				StartTime:    rec.StartTime,
				CallID:       call.ID,
				Topic:        call.Custom.Topic,
				Description:  call.Custom.Description,
				Invites:      call.Custom.Invites,
				CallStartsAt: call.StartsAt,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartTime.Equal(entries[j].StartTime) {
			return entries[i].URL < entries[j].URL
		}
		return entries[i].StartTime.After(entries[j].StartTime)
	})

	if len(failed) > 0 {
		s.log.Warn().Strs("call_ids", failed).Err(errs).Msg("recordings query partially failed")
		return entries, &PartialError{FailedCallIDs: failed, Err: errs}
	}
	return entries, nil
}
