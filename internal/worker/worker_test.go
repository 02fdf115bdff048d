package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inventario/internal/amqp"
	"inventario/internal/backup"
	"inventario/internal/core"
	"inventario/internal/storage"
)

type recordingMirror struct {
	mu    sync.Mutex
	calls [][]core.Transaction
}

func (m *recordingMirror) ReplaceAll(_ context.Context, transactions []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, transactions)
	return nil
}

func (m *recordingMirror) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestBackupWorker_FlushWritesBackupAndMirrors(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(context.Background(), transactionsKey,
		[]byte(`[{"id":"a","type":"salida","productName":"Soja","quantity":1,"totalValue":10,"date":"2024-05-01"},
		         {"id":"b","type":"entrada","productName":"Maíz","quantity":1,"totalValue":5,"date":"2024-05-10"}]`))

	dir := t.TempDir()
	mirror := &recordingMirror{}
	w := NewBackupWorker(kv, backup.NewManager(kv), mirror, dir, 10*time.Millisecond)

	w.Flush(context.Background())

	files, err := os.ReadDir(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("backup dir entries = %v (err %v), want one file", files, err)
	}
	if filepath.Ext(files[0].Name()) != ".json" {
		t.Errorf("backup file = %s, want .json", files[0].Name())
	}

	if mirror.callCount() != 1 {
		t.Fatalf("mirror calls = %d, want 1", mirror.callCount())
	}
	pushed := mirror.calls[0]
	if len(pushed) != 2 || pushed[0].Date != "2024-05-10" {
		t.Errorf("mirror rows = %+v, want two rows most recent first", pushed)
	}
}

func TestBackupWorker_NilMirrorSkipsPush(t *testing.T) {
	kv := storage.NewMemoryKV()
	w := NewBackupWorker(kv, backup.NewManager(kv), nil, t.TempDir(), 10*time.Millisecond)
	w.Flush(context.Background())
}

func TestBackupWorker_DebouncesBursts(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(context.Background(), transactionsKey, []byte(`[]`))

	mirror := &recordingMirror{}
	w := NewBackupWorker(kv, backup.NewManager(kv), mirror, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// A burst of events within the debounce window collapses to one flush.
	for i := 0; i < 5; i++ {
		w.HandleEvent(amqp.NewLedgerEvent("created", "x"))
	}

	deadline := time.After(2 * time.Second)
	for mirror.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Give a late second flush a chance to happen, then check it did not.
	time.Sleep(150 * time.Millisecond)
	if got := mirror.callCount(); got != 1 {
		t.Errorf("flushes = %d, want 1 for a single burst", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestBackupWorker_FlushesPendingWorkOnShutdown(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(context.Background(), transactionsKey, []byte(`[]`))

	mirror := &recordingMirror{}
	w := NewBackupWorker(kv, backup.NewManager(kv), mirror, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.HandleEvent(amqp.NewLedgerEvent("created", "x")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if err := w.Run(ctx); err != context.Canceled {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if got := mirror.callCount(); got != 1 {
		t.Errorf("flushes on shutdown = %d, want 1 for the pending event", got)
	}
}

func TestBackupWorker_HandleEventNeverBlocks(t *testing.T) {
	kv := storage.NewMemoryKV()
	w := NewBackupWorker(kv, backup.NewManager(kv), nil, t.TempDir(), time.Second)

	for i := 0; i < 100; i++ {
		if err := w.HandleEvent(amqp.NewLedgerEvent("created", "x")); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}
	}
}
