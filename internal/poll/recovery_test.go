package poll

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollwatch/pollwatch/internal/domain"
)

func seedPoll(t *testing.T, store Store, id string, endsIn time.Duration, now time.Time, finalized bool) *domain.Poll {
	t.Helper()
	p := &domain.Poll{
		ID:        id,
		Question:  "Lunch?",
		Options:   []string{"Pizza", "Salad"},
		Votes:     map[int]int{0: 2, 1: 0},
		Voters:    map[string]bool{"voter-a": true, "voter-b": true},
		CreatedAt: now.Add(-time.Hour),
		EndTime:   now.Add(endsIn),
		Finalized: finalized,
	}
	require.NoError(t, store.Save(context.Background(), p))
	return p
}

func TestRecover_ResumesOpenPolls(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	publisher := &recordingPublisher{}
	seedPoll(t, store, "open-poll", 30*time.Minute, clock.Now(), false)

	engine := NewEngine(store, publisher, &stubDisplay{}, clock)
	t.Cleanup(engine.Stop)
	require.NoError(t, engine.Recover(ctx))

	// One live render so the view reflects votes persisted before the crash.
	assert.Equal(t, 1, publisher.liveCount())
	assert.Equal(t, 0, publisher.finalCount())

	// The recovered session accepts votes and keeps the old ballots.
	_, err := engine.CastVote(ctx, "open-poll", "voter-a", 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	snap, err := engine.CastVote(ctx, "open-poll", "voter-c", 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 1: 1}, snap.Votes)

	// The rebuilt timer covers exactly the remainder.
	clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool {
		stored, err := store.Load(ctx, "open-poll")
		return err == nil && stored.Finalized
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, publisher.finalCount())
}

func TestRecover_FinalizesExpiredPolls(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	publisher := &recordingPublisher{}

	// Deadline passed 10 minutes ago while the process was down.
	seedPoll(t, store, "expired-poll", -10*time.Minute, clock.Now(), false)

	engine := NewEngine(store, publisher, &stubDisplay{}, clock)
	t.Cleanup(engine.Stop)
	require.NoError(t, engine.Recover(ctx))

	stored, err := store.Load(ctx, "expired-poll")
	require.NoError(t, err)
	assert.True(t, stored.Finalized)
	require.Equal(t, 1, publisher.finalCount())
	assert.Equal(t, map[int]int{0: 2, 1: 0}, publisher.lastFinal().Votes)

	_, err = engine.CastVote(ctx, "expired-poll", "voter-c", 0)
	assert.ErrorIs(t, err, domain.ErrPollClosed)
}

func TestRecover_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	seedPoll(t, store, "expired-poll", -10*time.Minute, clock.Now(), false)
	seedPoll(t, store, "open-poll", 30*time.Minute, clock.Now(), false)

	first := &recordingPublisher{}
	engine := NewEngine(store, first, &stubDisplay{}, clock)
	require.NoError(t, engine.Recover(ctx))
	require.Equal(t, 1, first.finalCount())
	engine.Stop()

	// A second recovery over the same store, as after another restart,
	// neither re-finalizes nor recounts.
	second := &recordingPublisher{}
	restarted := NewEngine(store, second, &stubDisplay{}, clock)
	t.Cleanup(restarted.Stop)
	require.NoError(t, restarted.Recover(ctx))

	assert.Equal(t, 0, second.finalCount())
	assert.Equal(t, 1, second.liveCount()) // only the open poll renders

	stored, err := store.Load(ctx, "expired-poll")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 1: 0}, stored.Votes)
	assert.Len(t, stored.Voters, 2)
}

func TestRecover_SkipsFinalizedPolls(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	publisher := &recordingPublisher{}
	seedPoll(t, store, "done-poll", -time.Hour, clock.Now(), true)

	engine := NewEngine(store, publisher, &stubDisplay{}, clock)
	t.Cleanup(engine.Stop)
	require.NoError(t, engine.Recover(ctx))

	assert.Equal(t, 0, publisher.finalCount())
	assert.Equal(t, 0, publisher.liveCount())
}
