package urgency

import "testing"

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Level
		want  int
	}{
		{Emergency, 10},
		{High, 7},
		{Medium, 5},
		{Low, 2},
		{Level("critical"), 3},
		{Level(""), 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			if got := Score(tt.level); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevels_PinnedOrder(t *testing.T) {
	t.Parallel()

	want := []Level{Emergency, High, Medium, Low}
	if len(Levels) != len(want) {
		t.Fatalf("len(Levels) = %d, want %d", len(Levels), len(want))
	}
	for i := range want {
		if Levels[i] != want[i] {
			t.Errorf("Levels[%d] = %q, want %q", i, Levels[i], want[i])
		}
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	for _, l := range Levels {
		got, err := Parse(string(l))
		if err != nil {
			t.Fatalf("Parse(%q): %v", l, err)
		}
		if got != l {
			t.Errorf("Parse(%q) = %q", l, got)
		}
	}

	for _, bad := range []string{"", "EMERGENCY", "urgent", " low"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", bad)
		}
	}
}
