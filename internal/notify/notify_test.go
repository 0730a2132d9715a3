package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pitstop/internal/config"
)

func TestDispatcherPostsCompletionNotice(t *testing.T) {
	received := make(chan CompletionNotice, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var n CompletionNotice
		if err := json.Unmarshal(body, &n); err != nil {
			t.Errorf("unmarshal notice: %v", err)
		}
		received <- n
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifyConfig{
		CompletionURL: srv.URL,
		From:          "service-center@pitstop.local",
	}, nil)
	d.ServiceCompleted(CompletionNotice{
		To:             "ada@example.com",
		ServiceOrderID: "SRV-1a2b3c4d",
		CompletedAt:    "2024-03-01T10:00:00Z",
	})

	select {
	case n := <-received:
		if n.From != "service-center@pitstop.local" || n.To != "ada@example.com" || n.ServiceOrderID != "SRV-1a2b3c4d" {
			t.Fatalf("unexpected notice: %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("notice never delivered")
	}
}

func TestDispatcherSkipsWhenUnconfigured(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{}, nil)
	// no URL configured: must return without dispatching or panicking
	d.BookingConfirmed(BookingNotice{ServiceOrderID: "SRV-1a2b3c4d"})
	d.ServiceCompleted(CompletionNotice{ServiceOrderID: "SRV-1a2b3c4d"})
}
