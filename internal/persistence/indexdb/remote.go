package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"envoy.ai/internal/sim/session"
)

// RemoteConfig points at an HTTP ingest endpoint that accepts
// {"events":[...]} batches of treaty records.
type RemoteConfig struct {
	Endpoint      string
	Token         string
	GameID        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxPending caps the records kept across failed flushes.
	MaxPending int
	Logger     *log.Logger
}

// RemoteIndex ships treaty records to a remote index in batches. A batch that
// fails to send is retained and retried with the next flush.
type RemoteIndex struct {
	cfg        RemoteConfig
	httpClient *http.Client

	ch   chan remoteEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped  atomic.Uint64
	pendingDrops  atomic.Uint64
	flushFailures atomic.Uint64
	flushed       atomic.Uint64
}

type remoteEvent struct {
	Kind    string               `json:"kind"`
	GameID  string               `json:"game_id"`
	Payload session.TreatyRecord `json:"payload"`
}

type RemoteStats struct {
	QueueDepth        int
	QueueDroppedTotal uint64
	PendingDropTotal  uint64
	FlushFailTotal    uint64
	FlushedTotal      uint64
}

func OpenRemote(cfg RemoteConfig) (*RemoteIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.GameID = strings.TrimSpace(cfg.GameID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty index ingest endpoint")
	}
	if cfg.GameID == "" {
		return nil, fmt.Errorf("empty game id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 16 * cfg.BatchSize
	}

	d := &RemoteIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan remoteEvent, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *RemoteIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *RemoteIndex) WriteTreaty(r session.TreatyRecord) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	ev := remoteEvent{Kind: strings.ToLower(string(r.Kind)), GameID: d.cfg.GameID, Payload: r}
	select {
	case d.ch <- ev:
	default:
		d.queueDropped.Add(1)
		d.printf("remote index queue full; drop kind=%s", ev.Kind)
	}
	return nil
}

func (d *RemoteIndex) Stats() RemoteStats {
	if d == nil {
		return RemoteStats{}
	}
	return RemoteStats{
		QueueDepth:        len(d.ch),
		QueueDroppedTotal: d.queueDropped.Load(),
		PendingDropTotal:  d.pendingDrops.Load(),
		FlushFailTotal:    d.flushFailures.Load(),
		FlushedTotal:      d.flushed.Load(),
	}
}

func (d *RemoteIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []remoteEvent
	flush := func() {
		for len(pending) > 0 {
			n := len(pending)
			if n > d.cfg.BatchSize {
				n = d.cfg.BatchSize
			}
			if err := d.sendBatch(pending[:n]); err != nil {
				d.flushFailures.Add(1)
				d.printf("remote index flush failed batch=%d err=%v", n, err)
				break
			}
			d.flushed.Add(uint64(n))
			pending = append(pending[:0], pending[n:]...)
		}
		if over := len(pending) - d.cfg.MaxPending; over > 0 {
			d.pendingDrops.Add(uint64(over))
			pending = append(pending[:0], pending[over:]...)
		}
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *RemoteIndex) sendBatch(events []remoteEvent) error {
	body := struct {
		Events []remoteEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-envoy-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *RemoteIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
