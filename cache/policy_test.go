package cache

import (
	"testing"
	"time"
)

func TestDocsPolicy(t *testing.T) {
	p := DocsPolicy()
	if p.StaleAfter != 5*time.Minute {
		t.Errorf("StaleAfter = %v, want 5m", p.StaleAfter)
	}
	if p.MaxStaleAfter != time.Hour {
		t.Errorf("MaxStaleAfter = %v, want 1h", p.MaxStaleAfter)
	}
}

func TestDefaultPolicy_IsNoStale(t *testing.T) {
	if DefaultPolicy() != NoStalePolicy() {
		t.Error("DefaultPolicy() should equal NoStalePolicy()")
	}
	if NoStalePolicy().StaleAfter != 0 {
		t.Error("NoStalePolicy() should have a zero window")
	}
}

func TestPolicy_EffectiveStaleAfter(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }

	tests := []struct {
		name     string
		policy   Policy
		override *time.Duration
		want     time.Duration
	}{
		{"default applies", DocsPolicy(), nil, 5 * time.Minute},
		{"explicit zero kept", DocsPolicy(), d(0), 0},
		{"override within max", DocsPolicy(), d(10 * time.Minute), 10 * time.Minute},
		{"override clamped", DocsPolicy(), d(2 * time.Hour), time.Hour},
		{"never stale clamped", DocsPolicy(), d(NeverStale), time.Hour},
		{"never stale unbounded", Policy{}, d(NeverStale), NeverStale},
		{"negative normalized", Policy{}, d(-5 * time.Second), NeverStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.EffectiveStaleAfter(tt.override); got != tt.want {
				t.Errorf("EffectiveStaleAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
