package domain

import (
	"testing"
	"time"
)

func iv(startHour, startMin, endHour, endMin int) TimeInterval {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return TimeInterval{
		Start: day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

func TestMergeIntervals(t *testing.T) {
	tests := []struct {
		name string
		in   []TimeInterval
		want []TimeInterval
	}{
		{
			name: "empty input",
			in:   nil,
			want: nil,
		},
		{
			name: "single interval unchanged",
			in:   []TimeInterval{iv(10, 0, 11, 0)},
			want: []TimeInterval{iv(10, 0, 11, 0)},
		},
		{
			name: "disjoint intervals sorted",
			in:   []TimeInterval{iv(13, 0, 14, 0), iv(10, 0, 11, 0)},
			want: []TimeInterval{iv(10, 0, 11, 0), iv(13, 0, 14, 0)},
		},
		{
			name: "overlapping intervals merged to spanning interval",
			in:   []TimeInterval{iv(10, 0, 11, 30), iv(11, 0, 12, 0)},
			want: []TimeInterval{iv(10, 0, 12, 0)},
		},
		{
			name: "touching boundaries merged",
			in:   []TimeInterval{iv(10, 0, 11, 0), iv(11, 0, 12, 0)},
			want: []TimeInterval{iv(10, 0, 12, 0)},
		},
		{
			name: "contained interval absorbed",
			in:   []TimeInterval{iv(10, 0, 14, 0), iv(11, 0, 12, 0)},
			want: []TimeInterval{iv(10, 0, 14, 0)},
		},
		{
			name: "chain of overlaps collapses",
			in:   []TimeInterval{iv(12, 0, 13, 0), iv(10, 0, 11, 0), iv(10, 30, 12, 15), iv(15, 0, 16, 0)},
			want: []TimeInterval{iv(10, 0, 13, 0), iv(15, 0, 16, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeIntervals(tt.in)
			assertIntervalsEqual(t, got, tt.want)
		})
	}
}

func TestMergeIntervals_Idempotent(t *testing.T) {
	in := []TimeInterval{
		iv(9, 45, 11, 15),
		iv(11, 0, 12, 0),
		iv(13, 0, 14, 0),
		iv(13, 30, 13, 45),
		iv(16, 0, 17, 0),
	}

	once := MergeIntervals(in)
	twice := MergeIntervals(once)
	assertIntervalsEqual(t, twice, once)
}

func TestMergeIntervals_DoesNotMutateInput(t *testing.T) {
	in := []TimeInterval{iv(13, 0, 14, 0), iv(10, 0, 11, 0)}
	MergeIntervals(in)
	if !in[0].Start.Equal(iv(13, 0, 14, 0).Start) {
		t.Fatalf("input slice was reordered")
	}
}

func TestTimeIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{"disjoint", iv(10, 0, 11, 0), iv(12, 0, 13, 0), false},
		{"touching boundaries do not overlap", iv(10, 0, 11, 0), iv(11, 0, 12, 0), false},
		{"partial overlap", iv(10, 0, 11, 0), iv(10, 30, 11, 30), true},
		{"contained", iv(10, 0, 12, 0), iv(10, 30, 11, 0), true},
		{"identical", iv(10, 0, 11, 0), iv(10, 0, 11, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Fatalf("b.Overlaps(a) = %v, want %v (must be symmetric)", got, tt.want)
			}
		})
	}
}

func TestMergeBusyBlocks(t *testing.T) {
	blocks := []BusyBlock{
		{TimeInterval: iv(13, 0, 14, 0), Origin: BusyOriginRemote},
		{TimeInterval: iv(9, 45, 11, 15), Origin: BusyOriginLocal, ReferenceID: "a1"},
		{TimeInterval: iv(11, 0, 11, 30), Origin: BusyOriginLocal, ReferenceID: "a2"},
	}

	got := MergeBusyBlocks(blocks)
	want := []TimeInterval{iv(9, 45, 11, 30), iv(13, 0, 14, 0)}
	assertIntervalsEqual(t, got, want)
}

func TestStatusOccupies(t *testing.T) {
	occupying := map[AppointmentStatus]bool{
		StatusPending:    true,
		StatusConfirmed:  true,
		StatusCheckedIn:  true,
		StatusInProgress: true,
		StatusCompleted:  false,
		StatusCancelled:  false,
		StatusNoShow:     false,
	}

	for status, want := range occupying {
		if got := status.Occupies(); got != want {
			t.Errorf("%s.Occupies() = %v, want %v", status, got, want)
		}
	}
}

func assertIntervalsEqual(t *testing.T, got, want []TimeInterval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (got %v)", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval[%d] = [%v, %v], want [%v, %v]",
				i, got[i].Start, got[i].End, want[i].Start, want[i].End)
		}
	}
}
