package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/motorbid/auction-api/internal/types"
)

func TestTemporalStateOf(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		startTime *time.Time
		endTime   *time.Time
		expected  TemporalState
	}{
		{
			name:      "before_start",
			startTime: &future,
			expected:  NotStarted,
		},
		{
			name:      "within_window",
			startTime: &past,
			endTime:   &future,
			expected:  Active,
		},
		{
			name:      "past_end",
			startTime: &past,
			endTime:   &past,
			expected:  Ended,
		},
		{
			name:     "no_end_time_never_ends",
			expected: Active,
		},
		{
			name:      "no_start_time_with_future_end",
			endTime:   &future,
			expected:  Active,
		},
		{
			name:      "exactly_at_end",
			startTime: &past,
			endTime:   &now,
			expected:  Ended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &types.Auction{
				StartTime: tt.startTime,
				EndTime:   tt.endTime,
			}
			require.Equal(t, tt.expected, TemporalStateOf(a, now))
		})
	}
}

func TestMaybeExtend(t *testing.T) {
	end := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("bid_inside_window_pushes_end_time", func(t *testing.T) {
		a := &types.Auction{
			EndTime:        timePtr(end),
			AutoExtendSecs: 300, // 5 minutes
		}
		bidTime := end.Add(-2 * time.Minute)

		require.True(t, MaybeExtend(a, bidTime))
		require.Equal(t, bidTime.Add(5*time.Minute), *a.EndTime)
	})

	t.Run("bid_outside_window_leaves_end_time", func(t *testing.T) {
		a := &types.Auction{
			EndTime:        timePtr(end),
			AutoExtendSecs: 300,
		}
		bidTime := end.Add(-10 * time.Minute)

		require.False(t, MaybeExtend(a, bidTime))
		require.Equal(t, end, *a.EndTime)
	})

	t.Run("bid_exactly_at_window_boundary_extends", func(t *testing.T) {
		a := &types.Auction{
			EndTime:        timePtr(end),
			AutoExtendSecs: 300,
		}
		bidTime := end.Add(-5 * time.Minute)

		require.True(t, MaybeExtend(a, bidTime))
		require.Equal(t, bidTime.Add(5*time.Minute), *a.EndTime)
	})

	t.Run("repeated_extensions_are_unbounded", func(t *testing.T) {
		a := &types.Auction{
			EndTime:        timePtr(end),
			AutoExtendSecs: 300,
		}

		bidTime := end.Add(-time.Minute)
		for i := 0; i < 10; i++ {
			require.True(t, MaybeExtend(a, bidTime))
			require.Equal(t, bidTime.Add(5*time.Minute), *a.EndTime)
			bidTime = a.EndTime.Add(-time.Minute)
		}
		require.Equal(t, end.Add(40*time.Minute), *a.EndTime)
	})

	t.Run("no_end_time_never_extends", func(t *testing.T) {
		a := &types.Auction{AutoExtendSecs: 300}
		require.False(t, MaybeExtend(a, end))
		require.Nil(t, a.EndTime)
	})

	t.Run("zero_window_never_extends", func(t *testing.T) {
		a := &types.Auction{EndTime: timePtr(end)}
		require.False(t, MaybeExtend(a, end.Add(-time.Second)))
		require.Equal(t, end, *a.EndTime)
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}
