package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/catalog"
	"strategist/internal/frame"
	"strategist/internal/frame/frametest"
	"strategist/internal/storage"
)

func TestWatchEvictsOnWrite(t *testing.T) {
	f := newFixture(t)
	f.write(t, "EURGBP_30min", frametest.Bars(t0, 30*time.Minute, 4))

	_, _, err := f.loader.Load(context.Background(), "EURGBP", "30min", Options{Cache: true})
	require.NoError(t, err)
	require.Equal(t, 1, f.loader.Stats().Entries)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- f.loader.Watch(ctx, ready) }()
	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}

	p := filepath.Join(f.root, "EURGBP", "30min", "EURGBP_30min.parquet")
	require.NoError(t, os.WriteFile(p, frametest.Parquet(t, frametest.Bars(t0, 30*time.Minute, 6), "UTC"), 0o644))

	assert.Eventually(t, func() bool { return f.loader.Stats().Entries == 0 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchNeedsLocalStore(t *testing.T) {
	s3 := storage.NewS3WithClient(nil, "bucket", "", 0, 0)
	l := New(catalog.New(s3, frame.FormatParquet), &frame.ParquetReader{})
	err := l.Watch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrWatchUnsupported)
}
