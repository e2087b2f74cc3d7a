package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"poselink/models"
)

const (
	notifyBatchSize  = 5
	notifyTimeout    = 10 * time.Second
	maxDetailsLength = 500
)

// ErrAlertingDisabled is returned by the Telegram sender when no bot token
// is configured.
var ErrAlertingDisabled = errors.New("alert delivery disabled")

// SendFunc delivers one formatted alert message to the external channel
type SendFunc func(ctx context.Context, text string) error

// NotificationDispatcher batches and rate-limits delivery of critical
// events to the external alerting channel. A boolean single-flight guard
// serializes delivery attempts; enqueues during an in-flight cycle are
// picked up on the next one. Constructed once at startup and injected into
// the components that need it.
type NotificationDispatcher struct {
	queue       []models.NotificationEvent
	sending     bool
	scheduled   bool
	lastAttempt time.Time
	minInterval time.Duration
	send        SendFunc
	metrics     *ConnectionMetrics
	mu          sync.Mutex
}

func NewNotificationDispatcher(minInterval time.Duration, send SendFunc, metrics *ConnectionMetrics) *NotificationDispatcher {
	return &NotificationDispatcher{
		queue:       make([]models.NotificationEvent, 0),
		minInterval: minInterval,
		send:        send,
		metrics:     metrics,
	}
}

// Enqueue appends an event to the batched delivery queue. Events below
// error severity are ignored.
func (d *NotificationDispatcher) Enqueue(event models.NotificationEvent) {
	if event.Level != models.LevelError && event.Level != models.LevelCritical {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue = append(d.queue, event)
	d.scheduleLocked()
}

// QueueLen returns the number of events awaiting delivery
func (d *NotificationDispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// scheduleLocked arranges the next delivery attempt. If the minimum
// interval since the last attempt has not elapsed, delivery is rescheduled
// rather than sent immediately. Caller must hold the lock.
func (d *NotificationDispatcher) scheduleLocked() {
	if d.sending || d.scheduled || len(d.queue) == 0 {
		return
	}

	elapsed := time.Since(d.lastAttempt)
	if elapsed >= d.minInterval {
		d.sending = true
		go d.deliver()
		return
	}

	d.scheduled = true
	time.AfterFunc(d.minInterval-elapsed, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.scheduled = false
		d.scheduleLocked()
	})
}

// deliver drains up to notifyBatchSize events into one formatted message
// and sends it. A failed batch is dropped, not re-enqueued; the remainder
// of the queue is retried on the next interval.
func (d *NotificationDispatcher) deliver() {
	d.mu.Lock()
	n := len(d.queue)
	if n > notifyBatchSize {
		n = notifyBatchSize
	}
	batch := make([]models.NotificationEvent, n)
	copy(batch, d.queue[:n])
	d.queue = d.queue[n:]
	d.lastAttempt = time.Now()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	err := d.send(ctx, formatBatch(batch, time.Now()))
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sending = false

	if err != nil {
		d.metrics.AlertBatchesFailed.Add(1)
		slog.Error("Alert batch delivery failed, batch dropped",
			"count", len(batch), "error", err)
	} else {
		d.metrics.AlertBatchesSent.Add(1)
	}
	d.scheduleLocked()
}

// SendCriticalAlert bypasses the queue and rate limiter and sends a
// single-event alert synchronously. Reserved for loss of the external
// video connection; may deliver out of order relative to the batched path.
func (d *NotificationDispatcher) SendCriticalAlert(ctx context.Context, sessionCode string, userType models.Role, message, details string) error {
	event := models.NotificationEvent{
		Level:       models.LevelCritical,
		UserType:    userType,
		SessionCode: sessionCode,
		Message:     message,
		Details:     details,
		OccurredAt:  time.Now(),
	}

	if err := d.send(ctx, formatBatch([]models.NotificationEvent{event}, time.Now())); err != nil {
		slog.Error("Critical alert delivery failed",
			"code", sessionCode, "error", err)
		return fmt.Errorf("failed to send critical alert: %w", err)
	}
	return nil
}

// formatBatch renders a deterministic alert message: a timestamp header
// followed by one line per event.
func formatBatch(events []models.NotificationEvent, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session alerts %s\n", now.Format("2006-01-02 15:04:05")))
	for _, event := range events {
		sb.WriteString(fmt.Sprintf("%s [%s] %s: %s",
			severityIcon(event.Level), event.UserType, event.SessionCode, event.Message))
		if event.Details != "" {
			sb.WriteString(" | " + truncate(event.Details, maxDetailsLength))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func severityIcon(level string) string {
	switch level {
	case models.LevelCritical:
		return "🚨"
	case models.LevelError:
		return "🔴"
	default:
		return "⚠️"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// NewTelegramSender returns a SendFunc delivering alerts via the Telegram
// bot API. With an empty token every send fails with ErrAlertingDisabled,
// which the dispatcher absorbs and logs.
func NewTelegramSender(botToken, chatID string) SendFunc {
	return func(ctx context.Context, text string) error {
		if botToken == "" {
			return ErrAlertingDisabled
		}

		url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
		payload := map[string]string{
			"chat_id": chatID,
			"text":    text,
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		client := &http.Client{}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			slog.Error("Telegram send failed", "status", resp.StatusCode, "body", string(body))
			return fmt.Errorf("telegram send failed: %s", resp.Status)
		}
		return nil
	}
}
