package cache

import (
	"errors"
	"testing"
	"time"
)

func TestEntry_IsStale(t *testing.T) {
	fetched := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry Entry
		now   time.Time
		want  bool
	}{
		{
			name:  "within window",
			entry: Entry{Status: StatusSuccess, FetchedAt: fetched, StaleAfter: 5 * time.Minute},
			now:   fetched.Add(time.Minute),
			want:  false,
		},
		{
			name:  "past window",
			entry: Entry{Status: StatusSuccess, FetchedAt: fetched, StaleAfter: 5 * time.Minute},
			now:   fetched.Add(6 * time.Minute),
			want:  true,
		},
		{
			name:  "zero window",
			entry: Entry{Status: StatusSuccess, FetchedAt: fetched},
			now:   fetched,
			want:  true,
		},
		{
			name:  "never stale",
			entry: Entry{Status: StatusSuccess, FetchedAt: fetched, StaleAfter: NeverStale},
			now:   fetched.Add(24 * time.Hour),
			want:  false,
		},
		{
			name:  "error is never stale",
			entry: Entry{Status: StatusError, Err: errors.New("boom")},
			now:   fetched.Add(time.Hour),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsStale(tt.now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Validate(t *testing.T) {
	now := time.Now()
	boom := errors.New("boom")

	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"empty", Entry{}, false},
		{"empty with value", Entry{Value: 1}, true},
		{"pending", Entry{Status: StatusPending, InFlight: 1}, false},
		{"pending without handle", Entry{Status: StatusPending}, true},
		{"success", Entry{Status: StatusSuccess, Value: "x", FetchedAt: now}, false},
		{"success nil payload", Entry{Status: StatusSuccess, FetchedAt: now}, false},
		{"success with error", Entry{Status: StatusSuccess, Value: "x", Err: boom, FetchedAt: now}, true},
		{"success refreshing", Entry{Status: StatusSuccess, Value: "x", FetchedAt: now, InFlight: 3}, false},
		{"error", Entry{Status: StatusError, Err: boom}, false},
		{"error with value", Entry{Status: StatusError, Err: boom, Value: "x"}, true},
		{"error without cause", Entry{Status: StatusError}, true},
		{"unknown status", Entry{Status: Status(9)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Validate() = %v, want wrapped ErrInvalidEntry", err)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusEmpty:   "empty",
		StatusPending: "pending",
		StatusSuccess: "success",
		StatusError:   "error",
		Status(42):    "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
