package callstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeClient is an in-memory Client for tests. It evaluates the same filter
// grammar the HTTP client sends, so query-building code is exercised end to
// end without a live store.
type FakeClient struct {
	mu         sync.Mutex
	calls      map[string]*fakeCall
	recordings map[string][]Recording

	// FailQueries makes QueryCalls fail with a TransientError.
	FailQueries bool
	// FailCreates makes GetOrCreate fail with a TransientError.
	FailCreates bool
	// FailRecordingsFor makes QueryRecordings fail for the listed call ids.
	FailRecordingsFor map[string]bool

	getOrCreateCount int
}

type fakeCall struct {
	call    Call
	members []string
}

// NewFakeClient creates an empty fake store.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		calls:             make(map[string]*fakeCall),
		recordings:        make(map[string][]Recording),
		FailRecordingsFor: make(map[string]bool),
	}
}

// AddCall seeds a call record. Members defaults to the creator.
func (f *FakeClient) AddCall(c Call, members ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(members) == 0 {
		members = []string{c.CreatedByUserID}
	}
	f.calls[c.ID] = &fakeCall{call: c, members: members}
}

// AddRecording seeds a recording under a call.
func (f *FakeClient) AddRecording(callID string, r Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings[callID] = append(f.recordings[callID], r)
}

// GetOrCreateCount reports how many get-or-create requests were issued.
func (f *FakeClient) GetOrCreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreateCount
}

// QueryCalls evaluates the filter against the seeded records.
func (f *FakeClient) QueryCalls(_ context.Context, q Query) ([]Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailQueries {
		return nil, &TransientError{Op: "query calls", Err: errors.New("store unreachable")}
	}

	var matched []*fakeCall
	for _, fc := range f.calls {
		ok, err := matches(fc, q.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, fc)
		}
	}

	for _, s := range q.Sort {
		if s.Field != FieldStartsAt {
			return nil, fmt.Errorf("fake store: unsupported sort field %q", s.Field)
		}
		asc := s.Direction == Ascending
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].call.StartsAt, matched[j].call.StartsAt
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			if asc {
				return a.Before(*b)
			}
			return a.After(*b)
		})
	}

	out := make([]Call, 0, len(matched))
	for _, fc := range matched {
		out = append(out, fc.call)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// GetOrCreate returns the existing record or atomically creates it.
func (f *FakeClient) GetOrCreate(_ context.Context, id string, data CallData) (Call, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getOrCreateCount++

	if f.FailCreates {
		return Call{}, false, &TransientError{Op: "get or create", Err: errors.New("store unreachable")}
	}

	if fc, ok := f.calls[id]; ok {
		return fc.call, false, nil
	}

	startsAt := data.StartsAt
	call := Call{
		ID:       id,
		StartsAt: &startsAt,
		Custom:   data.Custom,
	}
	members := data.Members
	f.calls[id] = &fakeCall{call: call, members: members}
	return call, true, nil
}

// QueryRecordings returns the seeded recordings for a call.
func (f *FakeClient) QueryRecordings(_ context.Context, callID string) ([]Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailRecordingsFor[callID] {
		return nil, &TransientError{Op: "query recordings", Err: fmt.Errorf("call %s unreachable", callID)}
	}
	out := make([]Recording, len(f.recordings[callID]))
	copy(out, f.recordings[callID])
	return out, nil
}

// matches evaluates a filter expression against one record.
func matches(fc *fakeCall, e Expr) (bool, error) {
	for key, val := range e {
		switch key {
		case "$and":
			subs, err := subExprs(val)
			if err != nil {
				return false, err
			}
			for _, sub := range subs {
				ok, err := matches(fc, sub)
				if err != nil || !ok {
					return false, err
				}
			}
		case "$or":
			subs, err := subExprs(val)
			if err != nil {
				return false, err
			}
			any := false
			for _, sub := range subs {
				ok, err := matches(fc, sub)
				if err != nil {
					return false, err
				}
				if ok {
					any = true
					break
				}
			}
			if !any {
				return false, nil
			}
		default:
			ok, err := matchField(fc, key, val)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func subExprs(val interface{}) ([]Expr, error) {
	subs, ok := val.([]Expr)
	if !ok {
		return nil, fmt.Errorf("fake store: expected expression list, got %T", val)
	}
	return subs, nil
}

func matchField(fc *fakeCall, field string, cond interface{}) (bool, error) {
	ops, isOps := cond.(map[string]interface{})
	if !isOps {
		// Direct equality.
		switch field {
		case FieldCreatedBy:
			return fc.call.CreatedByUserID == cond, nil
		default:
			return false, fmt.Errorf("fake store: unsupported equality field %q", field)
		}
	}

	for op, rhs := range ops {
		switch op {
		case "$exists":
			if field != FieldEndedAt {
				return false, fmt.Errorf("fake store: $exists only supported on %s", FieldEndedAt)
			}
			if (fc.call.EndedAt != nil) != rhs.(bool) {
				return false, nil
			}
		case "$in":
			if field != FieldMembers {
				return false, fmt.Errorf("fake store: $in only supported on %s", FieldMembers)
			}
			wanted, ok := rhs.([]string)
			if !ok {
				return false, fmt.Errorf("fake store: $in expects strings, got %T", rhs)
			}
			if !containsAny(fc.members, wanted) {
				return false, nil
			}
		case "$gte", "$lte", "$lt":
			if field != FieldStartsAt {
				return false, fmt.Errorf("fake store: comparison only supported on %s", FieldStartsAt)
			}
			if fc.call.StartsAt == nil {
				return false, nil
			}
			bound, err := parseWireTime(rhs)
			if err != nil {
				return false, err
			}
			at := *fc.call.StartsAt
			switch op {
			case "$gte":
				if at.Before(bound) {
					return false, nil
				}
			case "$lte":
				if at.After(bound) {
					return false, nil
				}
			case "$lt":
				if !at.Before(bound) {
					return false, nil
				}
			}
		default:
			return false, fmt.Errorf("fake store: unsupported operator %q", op)
		}
	}
	return true, nil
}

func parseWireTime(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("fake store: expected timestamp string, got %T", v)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fake store: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func containsAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
