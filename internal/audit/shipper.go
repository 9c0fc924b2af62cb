// Package audit ships a record of every state-changing request to external
// destinations. Audit entries are kept apart from application logs: they
// are consumed by compliance reviewers and routed to a webhook collector or
// an append-only JSON-lines file independently of slog output.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/planilla-hr/planilla/internal/config"
	"github.com/planilla-hr/planilla/internal/safego"
	"github.com/planilla-hr/planilla/internal/telemetry"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultFlushInterval  = 5 * time.Second
	queueSize             = 1000
)

// Entry is one audited request.
type Entry struct {
	Timestamp      time.Time      `json:"timestamp"`
	Action         string         `json:"action"`
	UserID         int64          `json:"user_id,omitempty"`
	OrganizationID int64          `json:"organization_id,omitempty"`
	Resource       string         `json:"resource,omitempty"`
	ResourceID     int64          `json:"resource_id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	StatusCode     int            `json:"status_code"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Shipper delivers audit entries to one destination.
type Shipper interface {
	Ship(ctx context.Context, entry *Entry) error
	Close() error
}

// MultiShipper fans entries out to every enabled shipper.
type MultiShipper struct {
	shippers []namedShipper
	mu       sync.RWMutex
}

type namedShipper struct {
	name string
	Shipper
}

// NewMultiShipper builds the shippers enabled in cfgs. Disabled entries are
// skipped.
func NewMultiShipper(cfgs []config.AuditShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}

		var (
			s   Shipper
			err error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, errors.New("webhook config is required for webhook shipper")
			}
			s, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, errors.New("file config is required for file shipper")
			}
			s, err = NewFileShipper(cfg.File.Path)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			_ = ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, namedShipper{name: cfg.Type, Shipper: s})
	}
	return ms, nil
}

// Len returns the number of active shippers.
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends entry to every shipper. A failing shipper does not stop the
// others; the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, entry *Entry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			telemetry.AuditEntriesDroppedTotal.WithLabelValues(s.name).Inc()
			slog.Warn("audit shipper failed", "shipper", s.name, "action", entry.Action, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Close closes every shipper.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ms.shippers = nil
	return errors.Join(errs...)
}

// WebhookShipper POSTs entries as JSON. With a batch size set, entries are
// queued and sent as a JSON array when the batch fills or the flush interval
// elapses.
type WebhookShipper struct {
	url           string
	headers       map[string]string
	timeout       time.Duration
	batchSize     int
	flushInterval time.Duration
	client        *http.Client

	queue     chan *Entry
	closeCh   chan struct{}
	done      <-chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a webhook shipper and, when batching, starts its
// flush loop.
func NewWebhookShipper(cfg *config.AuditWebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	interval := time.Duration(cfg.FlushInterval) * time.Second
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	ws := &WebhookShipper{
		url:           cfg.URL,
		headers:       cfg.Headers,
		timeout:       timeout,
		batchSize:     cfg.BatchSize,
		flushInterval: interval,
		client:        &http.Client{Timeout: timeout},
		closeCh:       make(chan struct{}),
	}
	if ws.batchSize > 0 {
		ws.queue = make(chan *Entry, queueSize)
		ws.done = safego.Go("audit-webhook-flush", ws.processBatches)
	} else {
		done := make(chan struct{})
		close(done)
		ws.done = done
	}
	return ws, nil
}

func (ws *WebhookShipper) processBatches() {
	ticker := time.NewTicker(ws.flushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, ws.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := ws.send(batch); err != nil {
			telemetry.AuditEntriesDroppedTotal.WithLabelValues("webhook").Add(float64(len(batch)))
			slog.Warn("failed to send audit batch", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-ws.queue:
			batch = append(batch, entry)
			if len(batch) >= ws.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ws.closeCh:
			for {
				select {
				case entry := <-ws.queue:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Ship queues entry when batching, and otherwise sends it at once. A full
// queue falls back to a direct send.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *Entry) error {
	if ws.queue != nil {
		select {
		case <-ws.closeCh:
			return errors.New("webhook shipper is closed")
		case ws.queue <- entry:
			return nil
		default:
		}
	}
	ctx, cancel := context.WithTimeout(ctx, ws.timeout)
	defer cancel()
	return ws.post(ctx, entry)
}

func (ws *WebhookShipper) send(batch []*Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), ws.timeout)
	defer cancel()
	return ws.post(ctx, batch)
}

func (ws *WebhookShipper) post(ctx context.Context, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flush loop after sending whatever is still queued.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	<-ws.done
	return nil
}

// FileShipper appends entries to a file, one JSON object per line.
type FileShipper struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens path for appending, creating it when absent.
func NewFileShipper(path string) (*FileShipper, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileShipper{file: f}, nil
}

// Ship writes entry as one line.
func (fs *FileShipper) Ship(_ context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
