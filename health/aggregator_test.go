package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func static(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestNewAggregator(t *testing.T) {
	if agg := NewAggregator(); agg.timeout != DefaultCheckTimeout {
		t.Errorf("Default timeout = %v, want %v", agg.timeout, DefaultCheckTimeout)
	}
	if agg := NewAggregator(AggregatorConfig{Timeout: 5 * time.Second}); agg.timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", agg.timeout)
	}
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("query", static("query", Healthy("ok")))
	agg.Register("upstream", static("upstream", Healthy("ok")))
	agg.Register("query", static("query", Degraded("replaced")))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "query" || names[1] != "upstream" {
		t.Fatalf("CheckerNames() = %v", names)
	}
	result, err := agg.Check(context.Background(), "query")
	if err != nil || result.Status != StatusDegraded {
		t.Errorf("Check(query) = %+v, %v; want the replacement", result, err)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "missing")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", static("a", Healthy("ok")))
	agg.Register("b", static("b", Degraded("slow")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("results[b] = %v", results["b"].Status)
	}
	if len(NewAggregator().CheckAll(context.Background())) != 0 {
		t.Error("empty aggregator returned results")
	}
}

func TestAggregator_CheckAllTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	block := make(chan struct{})
	defer close(block)
	agg.Register("stuck", NewCheckerFunc("stuck", func(context.Context) Result {
		<-block
		return Healthy("late")
	}))

	result := agg.CheckAll(context.Background())["stuck"]
	if result.Status != StatusUnhealthy || !errors.Is(result.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want timeout", result)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
