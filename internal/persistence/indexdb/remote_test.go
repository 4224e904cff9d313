package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"envoy.ai/internal/sim/session"
)

func TestRemoteIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var applied []remoteEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if r.Header.Get("x-envoy-index-token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}

		var body struct {
			Events []remoteEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		applied = append(applied, body.Events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenRemote(RemoteConfig{
		Endpoint:      srv.URL,
		Token:         "secret",
		GameID:        "game_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenRemote: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.WriteTreaty(session.TreatyRecord{Kind: session.RecordOpened, TreatyID: "t1", P0: 1, P1: 2}); err != nil {
		t.Fatalf("WriteTreaty: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(applied) >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	got := append([]remoteEvent(nil), applied...)
	mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected retained batch to be delivered once; got %d", len(got))
	}
	if got[0].Kind != "opened" || got[0].GameID != "game_1" || got[0].Payload.TreatyID != "t1" {
		t.Fatalf("event: %+v", got[0])
	}
	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded")
	}
	if st.QueueDroppedTotal != 0 || st.PendingDropTotal != 0 {
		t.Fatalf("unexpected drops: %+v", st)
	}
}

func TestOpenRemote_RequiresEndpointAndGame(t *testing.T) {
	if _, err := OpenRemote(RemoteConfig{GameID: "g"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := OpenRemote(RemoteConfig{Endpoint: "http://localhost:1"}); err == nil {
		t.Fatalf("expected game id error")
	}
}
