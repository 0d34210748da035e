package refresh

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/wsprovider/internal/index"
	"github.com/runger/wsprovider/internal/storage"
	"github.com/runger/wsprovider/internal/variant"
)

func TestTrigger_CoalescesWhileRunning(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var runs atomic.Int32

	trig := NewTrigger(func(context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- trig.Run(ctx) }()

	trig.Request()
	<-started

	// Many requests during one refresh yield one follow-up.
	for i := 0; i < 10; i++ {
		trig.Request()
	}
	release <- struct{}{}
	<-started
	release <- struct{}{}

	select {
	case <-started:
		t.Fatal("unexpected third refresh")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(2), runs.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTrigger_RequestNeverBlocks(t *testing.T) {
	t.Parallel()

	trig := NewTrigger(func(context.Context) {}, nil)
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			trig.Request()
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Request blocked without a running trigger")
	}
}

func testVariants(ids ...string) []*variant.Variant {
	out := make([]*variant.Variant, len(ids))
	for i, id := range ids {
		out[i] = &variant.Variant{ID: id, Backend: storage.Backend{Kind: storage.KindLegacyJSON, Path: "/nonexistent/" + id}}
	}
	return out
}

func TestRefreshAll_IsolatesVariants(t *testing.T) {
	t.Parallel()

	variants := testVariants("good", "broken", "other")
	idx := index.New(variant.IDs(variants)...)

	load := func(_ context.Context, _ *slog.Logger, variantID string, _ storage.Backend, _ storage.Options) []storage.Record {
		if variantID == "broken" {
			return []storage.Record{}
		}
		return storage.Records(variantID, []storage.Entry{{URI: "file:///" + variantID, Kind: storage.EntryFolder}}, storage.Options{})
	}

	r := NewRefresher(Config{Variants: variants, Index: idx, Load: load})
	require.NoError(t, r.RefreshAll(context.Background()))

	assert.Equal(t, 1, idx.Snapshot("good").Len())
	assert.Equal(t, 0, idx.Snapshot("broken").Len())
	assert.Equal(t, 1, idx.Snapshot("other").Len())
	assert.Positive(t, idx.Snapshot("broken").Generation)
}

func TestRefreshAll_ReadsConcurrently(t *testing.T) {
	t.Parallel()

	variants := testVariants("a", "b", "c")
	idx := index.New(variant.IDs(variants)...)

	var wg sync.WaitGroup
	wg.Add(len(variants))
	load := func(_ context.Context, _ *slog.Logger, _ string, _ storage.Backend, _ storage.Options) []storage.Record {
		// Every read waits for all reads to have started.
		wg.Done()
		wg.Wait()
		return nil
	}

	r := NewRefresher(Config{Variants: variants, Index: idx, Load: load})
	done := make(chan error, 1)
	go func() { done <- r.RefreshAll(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("variants were not read concurrently")
	}
}

func TestRefreshAll_MissingStorage(t *testing.T) {
	t.Parallel()

	variants := testVariants("code")
	idx := index.New("code")
	r := NewRefresher(Config{Variants: variants, Index: idx})

	require.NoError(t, r.RefreshAll(context.Background()))
	assert.Equal(t, 0, idx.Snapshot("code").Len())
}

func TestRefreshAll_Canceled(t *testing.T) {
	t.Parallel()

	idx := index.New("code")
	r := NewRefresher(Config{Variants: testVariants("code"), Index: idx})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.RefreshAll(ctx), context.Canceled)
}

func TestWatcher_NotifiesOnStorageChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "state.vscdb")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	notified := make(chan struct{}, 10)
	w, err := NewWatcher([]string{file, filepath.Join(t.TempDir(), "missing", "storage.json")}, 100*time.Millisecond, func() {
		notified <- struct{}{}
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Watching())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	select {
	case <-notified:
		t.Fatal("notified for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	// A burst of writes to the database and its WAL is one notification.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte{byte(i)}, 0o644))
		require.NoError(t, os.WriteFile(file+"-wal", []byte{byte(i)}, 0o644))
	}

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after storage change")
	}
	select {
	case <-notified:
		t.Fatal("burst produced more than one notification")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher(nil, time.Millisecond, func() {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestDebouncer_Stop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := newDebouncer(10*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
