package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/medtriage/internal/triage/pgstore.(*Store).Get", "(*Store).Get"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Get", "(*Store).Get"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := shortenFuncName(tt.in)
			if got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReqDBStats_AddQuery(t *testing.T) {
	t.Parallel()

	s := &ReqDBStats{}

	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))
	s.AddQuery(5*time.Millisecond, nil)

	if s.QueryCount != 3 {
		t.Errorf("QueryCount = %d, want 3", s.QueryCount)
	}
	if s.TotalDuration != 35*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 35ms", s.TotalDuration)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}

	n, total, errs := s.Snapshot()
	if n != 3 || total != 35*time.Millisecond || errs != 1 {
		t.Errorf("Snapshot() = %d, %v, %d, want 3, 35ms, 1", n, total, errs)
	}
}

func TestReqDBStatsContext_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := NewReqDBStatsContext(context.Background())
	got, ok := ReqDBStatsFromContext(ctx)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got == nil {
		t.Fatal("expected non-nil stats")
	}

	// Verify it's the same pointer
	got.AddQuery(time.Millisecond, nil)
	got2, _ := ReqDBStatsFromContext(ctx)
	if got2.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1 (same pointer)", got2.QueryCount)
	}
}

func TestReqDBStatsFromContext_Missing(t *testing.T) {
	t.Parallel()

	_, ok := ReqDBStatsFromContext(context.Background())
	if ok {
		t.Error("expected ok=false for plain context")
	}
}

func TestWithHTTPMethod_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "POST")
	got := httpMethodFromContext(ctx)
	if got != "POST" {
		t.Errorf("httpMethodFromContext = %q, want %q", got, "POST")
	}
}

func TestWithHTTPMethod_Empty(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "")
	got := httpMethodFromContext(ctx)
	if got != "" {
		t.Errorf("httpMethodFromContext = %q, want empty", got)
	}
}

func TestSetQueryObserver(t *testing.T) {
	t.Parallel()

	// Save and restore the global to avoid test pollution.
	defer SetQueryObserver(nil)

	called := false
	obs := QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	})

	SetQueryObserver(obs)
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "GET", "/test", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	got = getQueryObserver()
	if got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := methodLabel(ctx); got != "UNKNOWN" {
		t.Errorf("methodLabel = %q, want UNKNOWN", got)
	}
	if got := methodLabel(WithHTTPMethod(ctx, "POST")); got != "POST" {
		t.Errorf("methodLabel = %q, want POST", got)
	}
	if got := routeLabel(ctx); got != "background" {
		t.Errorf("routeLabel = %q, want background", got)
	}
	if got := outcomeLabel(nil); got != "ok" {
		t.Errorf("outcomeLabel(nil) = %q, want ok", got)
	}
	if got := outcomeLabel(errors.New("x")); got != "error" {
		t.Errorf("outcomeLabel(err) = %q, want error", got)
	}
}

func TestTraceQueryEnd_ObservesAndCounts(t *testing.T) {
	// Not parallel: sets the global query observer.
	defer SetQueryObserver(nil)

	var gotMethod, gotOutcome string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, _, outcome string, _ time.Duration) {
		gotMethod = method
		gotOutcome = outcome
	}))

	tr := wrapQueryTracer(nil, time.Hour)
	ctx := NewReqDBStatsContext(WithHTTPMethod(context.Background(), "GET"))
	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1", Args: []any{"secret"}})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	stats, _ := ReqDBStatsFromContext(ctx)
	if stats.QueryCount != 1 || stats.ErrorCount != 1 {
		t.Errorf("stats = %+v, want 1 query 1 error", stats)
	}
	if gotMethod != "GET" || gotOutcome != "error" {
		t.Errorf("observer got method=%q outcome=%q", gotMethod, gotOutcome)
	}

	st, _ := ctx.Value(ctxKeyQuery).(*queryState)
	if st == nil || st.nargs != 1 || st.sql != "SELECT 1" {
		t.Errorf("query state = %+v", st)
	}
}

func TestNewPool_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := NewPool(context.Background(), "postgres://%zz")
	if err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}
