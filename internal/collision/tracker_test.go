package collision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/internal/hash"
)

func TestTrackDistinctValues(t *testing.T) {
	tracker := NewTracker()

	require.NoError(t, tracker.Track("alpha", hash.ID("alpha")))
	require.NoError(t, tracker.Track("beta", hash.ID("beta")))
	require.False(t, tracker.HasCollision())
}

func TestTrackSameValueTwice(t *testing.T) {
	tracker := NewTracker()

	h := hash.ID("alpha")
	require.NoError(t, tracker.Track("alpha", h))
	require.NoError(t, tracker.Track("alpha", h))
	require.False(t, tracker.HasCollision())
}

func TestTrackCollisionFailsHard(t *testing.T) {
	tracker := NewTracker()

	// Force a collision by reusing one digest for two distinct strings.
	require.NoError(t, tracker.Track("alpha", 42))

	err := tracker.Track("beta", 42)
	require.ErrorIs(t, err, errs.ErrHashCollision)
	require.True(t, tracker.HasCollision())
}

func TestTrackSoftRecordsWithoutError(t *testing.T) {
	tracker := NewTracker()

	tracker.TrackSoft("alpha", 42)
	tracker.TrackSoft("beta", 42)
	require.True(t, tracker.HasCollision())
}

func TestResetClearsState(t *testing.T) {
	tracker := NewTracker()

	tracker.TrackSoft("alpha", 42)
	tracker.TrackSoft("beta", 42)
	require.True(t, tracker.HasCollision())

	tracker.Reset()
	require.False(t, tracker.HasCollision())
	require.NoError(t, tracker.Track("gamma", 42))
}
