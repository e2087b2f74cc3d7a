package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"poselink/models"
)

// captureSend records delivered alert texts and can be told to fail
type captureSend struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (c *captureSend) fn(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *captureSend) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

func (c *captureSend) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return ""
	}
	return c.texts[len(c.texts)-1]
}

func errorEvent(i int) models.NotificationEvent {
	return models.NotificationEvent{
		Level:       models.LevelError,
		UserType:    models.RoleSubject,
		SessionCode: "AB12CD",
		Message:     fmt.Sprintf("failure %d", i),
		OccurredAt:  time.Now(),
	}
}

func TestDispatcherIgnoresLowSeverity(t *testing.T) {
	sender := &captureSend{}
	dispatcher := NewNotificationDispatcher(time.Hour, sender.fn, NewConnectionMetrics())

	dispatcher.Enqueue(models.NotificationEvent{Level: models.LevelInfo, Message: "info"})
	dispatcher.Enqueue(models.NotificationEvent{Level: models.LevelWarning, Message: "warn"})

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, sender.count())
	require.Zero(t, dispatcher.QueueLen())
}

func TestDispatcherBatchesUnderBurst(t *testing.T) {
	sender := &captureSend{}
	dispatcher := NewNotificationDispatcher(200*time.Millisecond, sender.fn, NewConnectionMetrics())

	// Pretend a delivery just happened so the burst lands inside one window
	dispatcher.mu.Lock()
	dispatcher.lastAttempt = time.Now()
	dispatcher.mu.Unlock()

	for i := 0; i < 50; i++ {
		dispatcher.Enqueue(errorEvent(i))
	}

	// Inside the window nothing is sent yet
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, sender.count())
	require.Equal(t, 50, dispatcher.QueueLen())

	// One batch of at most 5 goes out once the interval elapses
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, sender.count(), "at most one batch per interval window")
	require.Equal(t, 45, dispatcher.QueueLen())

	// Each batch message carries a header plus one line per event
	lines := strings.Split(strings.TrimRight(sender.last(), "\n"), "\n")
	require.Len(t, lines, 6)

	// Second delivery only after another full interval
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 2, sender.count())
	require.Equal(t, 40, dispatcher.QueueLen())
}

func TestDispatcherDropsFailedBatch(t *testing.T) {
	sender := &captureSend{fail: true}
	metrics := NewConnectionMetrics()
	dispatcher := NewNotificationDispatcher(100*time.Millisecond, sender.fn, metrics)

	dispatcher.mu.Lock()
	dispatcher.lastAttempt = time.Now()
	dispatcher.mu.Unlock()

	for i := 0; i < 8; i++ {
		dispatcher.Enqueue(errorEvent(i))
	}

	time.Sleep(150 * time.Millisecond)
	require.Zero(t, sender.count())
	require.Equal(t, int64(1), metrics.AlertBatchesFailed.Load())
	// Failed batch was dropped, not re-enqueued; remainder stays queued
	require.Equal(t, 3, dispatcher.QueueLen())

	// Recover: the remainder goes out on the next cycle
	sender.mu.Lock()
	sender.fail = false
	sender.mu.Unlock()

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 1, sender.count())
	require.Zero(t, dispatcher.QueueLen())
	require.Equal(t, int64(1), metrics.AlertBatchesSent.Load())
}

func TestSendCriticalAlertBypassesRateLimit(t *testing.T) {
	sender := &captureSend{}
	dispatcher := NewNotificationDispatcher(time.Hour, sender.fn, NewConnectionMetrics())

	// Saturate the batched path
	dispatcher.Enqueue(errorEvent(0))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, sender.count())

	// Immediate path goes out regardless of the interval
	err := dispatcher.SendCriticalAlert(context.Background(), "AB12CD", models.RoleSubject, "video connection lost", "ice failed")
	require.NoError(t, err)
	require.Equal(t, 2, sender.count())
	require.Contains(t, sender.last(), "video connection lost")
	require.Contains(t, sender.last(), "AB12CD")
}

func TestSendCriticalAlertSurfacesFailure(t *testing.T) {
	sender := &captureSend{fail: true}
	dispatcher := NewNotificationDispatcher(time.Hour, sender.fn, NewConnectionMetrics())

	err := dispatcher.SendCriticalAlert(context.Background(), "AB12CD", models.RoleOperator, "video connection lost", "")
	require.Error(t, err)
}

func TestFormatBatchDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	events := []models.NotificationEvent{
		{Level: models.LevelCritical, UserType: models.RoleSubject, SessionCode: "AB12CD", Message: "video connection lost"},
		{Level: models.LevelError, UserType: models.RoleOperator, SessionCode: "AB12CD", Message: "command failed", Details: "timeout"},
	}

	text := formatBatch(events, now)
	require.Equal(t,
		"Session alerts 2026-03-14 15:09:26\n"+
			"🚨 [subject] AB12CD: video connection lost\n"+
			"🔴 [operator] AB12CD: command failed | timeout\n",
		text)
}

func TestFormatBatchTruncatesDetails(t *testing.T) {
	long := strings.Repeat("x", 600)
	text := formatBatch([]models.NotificationEvent{
		{Level: models.LevelError, UserType: models.RoleSubject, SessionCode: "AB12CD", Message: "m", Details: long},
	}, time.Now())

	require.Contains(t, text, strings.Repeat("x", maxDetailsLength)+"...")
	require.NotContains(t, text, strings.Repeat("x", maxDetailsLength+1))
}
