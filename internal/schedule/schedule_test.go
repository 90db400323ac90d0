package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/huemotion/internal/engine"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		expr    string
		want    Clock
		wantErr bool
	}{
		{"06:30", Clock{6, 30}, false},
		{" 7:05 ", Clock{7, 5}, false},
		{"23:59", Clock{23, 59}, false},
		{"24:00", Clock{}, true},
		{"12:60", Clock{}, true},
		{"noon", Clock{}, true},
		{"1230", Clock{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseClock(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaily_Next(t *testing.T) {
	d, err := NewDaily("evening", "19:30", time.UTC, engine.Stop{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{"later today", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"exactly at", time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC), time.Date(2024, 3, 2, 19, 30, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 19, 30, 0, 0, time.UTC)},
		{"month end", time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Next(tt.after); !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodic_Next(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewPeriodic("shuffle", 15*time.Minute, start, engine.Stop{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		after time.Duration
		want  time.Duration
	}{
		{-time.Hour, 15 * time.Minute},
		{0, 15 * time.Minute},
		{14 * time.Minute, 15 * time.Minute},
		{15 * time.Minute, 30 * time.Minute},
		{31 * time.Minute, 45 * time.Minute},
	}
	for _, tt := range tests {
		if got := p.Next(start.Add(tt.after)); !got.Equal(start.Add(tt.want)) {
			t.Errorf("Next(+%v) = %v, want +%v", tt.after, got.Sub(start), tt.want)
		}
	}

	if _, err := NewPeriodic("bad", 0, start, engine.Stop{}); err == nil {
		t.Error("NewPeriodic(0) should fail")
	}
}

type recordingSubmitter struct {
	mu   sync.Mutex
	cmds []engine.Command
}

func (r *recordingSubmitter) Submit(ctx context.Context, cmd engine.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

func TestScheduler_RunFiresPeriodic(t *testing.T) {
	sub := &recordingSubmitter{}
	s := New(sub, time.UTC)

	p, _ := NewPeriodic("fast", 20*time.Millisecond, time.Now(), engine.Stop{})
	s.Register(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for sub.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d commands submitted", sub.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if _, ok := sub.cmds[0].(engine.Stop); !ok {
		t.Errorf("submitted %T, want engine.Stop", sub.cmds[0])
	}
}

func TestScheduler_FormatDay(t *testing.T) {
	s := New(&recordingSubmitter{}, time.UTC)
	if got := s.FormatDay(time.Now()); got != "No schedules" {
		t.Errorf("FormatDay() = %q", got)
	}

	d, _ := NewDaily("morning", "07:00", time.UTC, engine.Stop{})
	s.Register(d)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := NewPeriodic("six", 6*time.Hour, start, engine.GetLights{})
	s.Register(p)

	out := s.FormatDay(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	if n := strings.Count(out, "six"); n != 4 {
		t.Errorf("periodic listed %d times, want 4:\n%s", n, out)
	}
	if !strings.Contains(out, "07:00:00") || !strings.Contains(out, "at 07:00") {
		t.Errorf("daily entry missing:\n%s", out)
	}
	if strings.Index(out, "00:00:00") > strings.Index(out, "07:00:00") {
		t.Errorf("entries not sorted:\n%s", out)
	}
}
