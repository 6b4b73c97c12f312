package brain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

type failingAdapter struct{ calls int }

func (a *failingAdapter) Reply(_ context.Context, _ ReplyRequest) (ReplyResponse, error) {
	a.calls++
	return ReplyResponse{}, errors.New("boom")
}

func TestMockAdapterEscalatesOnAnger(t *testing.T) {
	a := NewMockAdapter()
	res, err := a.Reply(context.Background(), ReplyRequest{
		InputText: "this is broken",
		Sentiment: protocol.Sentiment{Label: "negative", Emotions: protocol.EmotionBreakdown{Anger: 0.8}},
	})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if !res.ShouldEscalate {
		t.Fatalf("expected escalation for angry negative sentiment")
	}
	if res.Text == "" {
		t.Fatalf("reply text should not be empty")
	}
}

func TestFallbackAdapterUsesSecondary(t *testing.T) {
	primary := &failingAdapter{}
	fb := NewFallbackAdapter(primary, NewMockAdapter())

	res, err := fb.Reply(context.Background(), ReplyRequest{InputText: "hello"})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
	if res.Text == "" {
		t.Fatalf("fallback should produce a reply")
	}
}

func TestFallbackAdapterDoesNotRetryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fb := NewFallbackAdapter(NewMockAdapter(), &failingAdapter{})
	if _, err := fb.Reply(ctx, ReplyRequest{InputText: "hi"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestHTTPAdapterRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Happy to help with your account.","should_escalate":false}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)
	res, err := a.Reply(context.Background(), ReplyRequest{InputText: "account help"})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if res.Text != "Happy to help with your account." {
		t.Fatalf("unexpected reply: %+v", res)
	}
}

func TestHTTPAdapterRejectsEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL)
	if _, err := a.Reply(context.Background(), ReplyRequest{InputText: "x"}); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestNewAdapterModeValidation(t *testing.T) {
	if _, err := NewAdapter(Config{Mode: "http"}); err == nil {
		t.Fatalf("http mode without url should fail")
	}
	if _, err := NewAdapter(Config{Mode: "wat"}); err == nil {
		t.Fatalf("unknown mode should fail")
	}
	a, err := NewAdapter(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter(auto) error = %v", err)
	}
	if _, ok := a.(*MockAdapter); !ok {
		t.Fatalf("auto without url should pick mock, got %T", a)
	}
}
