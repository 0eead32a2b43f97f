package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []EmailJobPayload
	err  error
}

func (f *fakeSender) SendReport(to, subject, body, pdfPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, EmailJobPayload{ToEmail: to, Subject: subject, Body: body, PDFPath: pdfPath})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func rawJob(t *testing.T, jobType string, payload any, attempts int) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Job{Type: jobType, Payload: data, Attempts: attempts})
	require.NoError(t, err)
	return string(raw)
}

func TestEmailWorker_Process(t *testing.T) {
	sender := &fakeSender{}
	w := NewEmailWorker(sender)

	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "maria@example.com", Subject: "Recibo", PDFPath: "/tmp/r.pdf"})
	require.NoError(t, w.Process(context.Background(), raw))
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "/tmp/r.pdf", sender.sent[0].PDFPath)

	// empty recipient and broken payloads are dropped, not retried
	raw, _ = json.Marshal(EmailJobPayload{Subject: "x"})
	assert.NoError(t, w.Process(context.Background(), raw))
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{`)))
	assert.Equal(t, 1, sender.count())

	sender.err = errors.New("smtp down")
	raw, _ = json.Marshal(EmailJobPayload{ToEmail: "maria@example.com"})
	assert.Error(t, w.Process(context.Background(), raw))
}

func TestProcessJob_RetriesThenGivesUp(t *testing.T) {
	calls := 0
	handlers := map[string]Handler{
		JobEmail: func(context.Context, json.RawMessage) error {
			calls++
			return errors.New("boom")
		},
	}

	job, retry := processJob(context.Background(), handlers, QueueEmail, rawJob(t, JobEmail, EmailJobPayload{}, 0))
	require.NotNil(t, job)
	assert.True(t, retry)
	assert.Equal(t, 1, job.Attempts)

	job, retry = processJob(context.Background(), handlers, QueueEmail, rawJob(t, JobEmail, EmailJobPayload{}, MaxJobAttempts-1))
	require.NotNil(t, job)
	assert.False(t, retry)
	assert.Equal(t, MaxJobAttempts, job.Attempts)
	assert.Equal(t, 2, calls)
}

func TestProcessJob_SuccessAndUnknownType(t *testing.T) {
	handlers := map[string]Handler{
		JobEmail: func(context.Context, json.RawMessage) error { return nil },
	}
	job, retry := processJob(context.Background(), handlers, QueueEmail, rawJob(t, JobEmail, EmailJobPayload{}, 0))
	assert.Nil(t, job)
	assert.False(t, retry)

	job, retry = processJob(context.Background(), handlers, QueueEmail, rawJob(t, "fax", struct{}{}, 0))
	require.NotNil(t, job)
	assert.False(t, retry)

	job, _ = processJob(context.Background(), handlers, QueueEmail, "not json")
	assert.Nil(t, job)
}

func TestInlineDispatcher_RunsHandler(t *testing.T) {
	sender := &fakeSender{}
	d := NewInlineDispatcher(map[string]Handler{JobEmail: NewEmailWorker(sender).Process})

	require.NoError(t, d.EnqueueEmail(context.Background(), EmailJobPayload{ToEmail: "maria@example.com"}))
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	empty := NewInlineDispatcher(nil)
	assert.Error(t, empty.EnqueueEmail(context.Background(), EmailJobPayload{}))
}

func TestTimerCleanupScheduler_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SaleReceipt_x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	s := NewTimerCleanupScheduler(20 * time.Millisecond)
	require.NoError(t, s.Schedule(context.Background(), path))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}

func TestRemoveReport_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, removeReport(filepath.Join(t.TempDir(), "gone.pdf")))
}

func TestDeadLetters_WithoutRedis(t *testing.T) {
	d := NewDeadLetters(nil)
	ctx := context.Background()

	counts, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{QueueEmail: 0, CleanupKey: 0}, counts)

	recent, err := d.Recent(ctx, QueueEmail, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	_, err = d.Recent(ctx, "jobs:unknown", 10)
	assert.Error(t, err)
}
