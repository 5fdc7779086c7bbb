package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollwatch/pollwatch/internal/domain"
)

type fakeSink struct {
	mu      sync.Mutex
	nextRef int
	views   map[string]domain.RenderedView
	creates int
	updates int
}

func newFakeSink() *fakeSink {
	return &fakeSink{views: make(map[string]domain.RenderedView)}
}

func (s *fakeSink) Create(_ context.Context, view domain.RenderedView) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRef++
	s.creates++
	ref := fmt.Sprintf("ref-%d", s.nextRef)
	s.views[ref] = view
	return ref, nil
}

func (s *fakeSink) Update(_ context.Context, ref string, view domain.RenderedView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[ref]; !ok {
		return ErrRefMissing
	}
	s.updates++
	s.views[ref] = view
	return nil
}

func (s *fakeSink) delete(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, ref)
}

type fakeRecords struct {
	mu    sync.Mutex
	saved []*domain.Poll
}

func (r *fakeRecords) Save(_ context.Context, p *domain.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, p.Clone())
	return nil
}

func renderablePoll() *domain.Poll {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Poll{
		ID:        "p1",
		Question:  "Lunch?",
		Options:   []string{"Pizza", "Salad"},
		Votes:     map[int]int{0: 2, 1: 0},
		Voters:    map[string]bool{"a": true, "b": true},
		CreatedAt: now,
		EndTime:   now.Add(time.Hour),
	}
}

func TestPublish_CreatesDestinationOnFirstRender(t *testing.T) {
	ctx := context.Background()
	sink := newFakeSink()
	records := &fakeRecords{}
	publisher := New(sink, records, nil)

	p := renderablePoll()
	require.NoError(t, publisher.Publish(ctx, p, false))

	assert.Equal(t, "ref-1", p.ResultsRef)
	assert.Equal(t, 1, sink.creates)
	require.Len(t, records.saved, 1)
	assert.Equal(t, "ref-1", records.saved[0].ResultsRef)
}

func TestPublish_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	sink := newFakeSink()
	publisher := New(sink, &fakeRecords{}, nil)

	p := renderablePoll()
	require.NoError(t, publisher.Publish(ctx, p, false))

	p.Votes[1] = 3
	require.NoError(t, publisher.Publish(ctx, p, false))

	assert.Equal(t, "ref-1", p.ResultsRef)
	assert.Equal(t, 1, sink.creates)
	assert.Equal(t, 1, sink.updates)
	assert.Contains(t, sink.views["ref-1"].Lines, "Salad: 3 votes")
}

func TestPublish_RecreatesWhenDestinationDeleted(t *testing.T) {
	ctx := context.Background()
	sink := newFakeSink()
	records := &fakeRecords{}
	publisher := New(sink, records, nil)

	p := renderablePoll()
	require.NoError(t, publisher.Publish(ctx, p, false))
	sink.delete("ref-1")

	require.NoError(t, publisher.Publish(ctx, p, false))
	assert.Equal(t, "ref-2", p.ResultsRef)
	assert.Equal(t, 2, sink.creates)

	// Repeating the call is a plain update again.
	require.NoError(t, publisher.Publish(ctx, p, false))
	assert.Equal(t, "ref-2", p.ResultsRef)
	assert.Equal(t, 1, sink.updates)
}

func TestPublish_FinalStyling(t *testing.T) {
	ctx := context.Background()
	sink := newFakeSink()
	publisher := New(sink, &fakeRecords{}, nil)

	p := renderablePoll()
	require.NoError(t, publisher.Publish(ctx, p, true))

	view := sink.views[p.ResultsRef]
	assert.True(t, view.Final)
	assert.Equal(t, "Final results: Lunch?", view.Title)
	assert.Equal(t, []string{"Pizza: 2 votes", "Salad: 0 votes"}, view.Lines)
}

type brokenSink struct{ calls int }

func (s *brokenSink) Create(context.Context, domain.RenderedView) (string, error) {
	s.calls++
	return "", errors.New("sink down")
}

func (s *brokenSink) Update(context.Context, string, domain.RenderedView) error {
	s.calls++
	return errors.New("sink down")
}

func TestPublish_BreakerShedsDeadSink(t *testing.T) {
	ctx := context.Background()
	sink := &brokenSink{}
	publisher := New(sink, &fakeRecords{}, nil)

	p := renderablePoll()
	for i := 0; i < 10; i++ {
		assert.Error(t, publisher.Publish(ctx, p, false))
	}

	// After five consecutive failures the breaker opens and stops calling
	// the sink at all.
	assert.Equal(t, 5, sink.calls)
}

type countingBroadcaster struct {
	mu    sync.Mutex
	views []domain.RenderedView
}

func (b *countingBroadcaster) PublishView(_ string, view domain.RenderedView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.views = append(b.views, view)
}

func TestPublish_FansOutToBroadcaster(t *testing.T) {
	ctx := context.Background()
	broadcaster := &countingBroadcaster{}
	publisher := New(newFakeSink(), &fakeRecords{}, broadcaster)

	p := renderablePoll()
	require.NoError(t, publisher.Publish(ctx, p, false))
	require.NoError(t, publisher.Publish(ctx, p, true))

	require.Len(t, broadcaster.views, 2)
	assert.False(t, broadcaster.views[0].Final)
	assert.True(t, broadcaster.views[1].Final)
}

func TestRender_TruncatesAtDisplayCaps(t *testing.T) {
	p := renderablePoll()
	p.Question = strings.Repeat("ä", 300)
	p.Options[0] = strings.Repeat("ö", 100)

	view := Render(p, false)

	// Caps are in code points, not bytes; stored values stay untruncated.
	assert.Equal(t, "Live results: "+strings.Repeat("ä", 256), view.Title)
	assert.Equal(t, strings.Repeat("ö", 80)+": 2 votes", view.Lines[0])
	assert.Len(t, []rune(p.Question), 300)
}
