package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/frame"
	"strategist/internal/market"
	"strategist/internal/storage"
)

type countingStore struct {
	storage.Store
	calls int
}

func (c *countingStore) Stat(ctx context.Context, p string) (storage.Info, error) {
	c.calls++
	return c.Store.Stat(ctx, p)
}

func (c *countingStore) List(ctx context.Context, prefix string) ([]string, error) {
	c.calls++
	return c.Store.List(ctx, prefix)
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "EURUSD/1hr/EURUSD_1hr.parquet")
	c := New(storage.NewLocal(root, storage.FingerprintStat), frame.FormatParquet)

	loc, err := c.Resolve(context.Background(), "eurusd", "1h")
	require.NoError(t, err)
	assert.Equal(t, market.DatasetKey{Symbol: market.EURUSD, Timeframe: market.TF1hr}, loc.Key)
	assert.Equal(t, "EURUSD/1hr/EURUSD_1hr.parquet", loc.Path)
	assert.Equal(t, root+"/EURUSD/1hr/EURUSD_1hr.parquet", loc.URI)
	assert.Equal(t, int64(1), loc.Info.Size)

	again, err := c.Resolve(context.Background(), "EURUSD", "1hr")
	require.NoError(t, err)
	assert.Equal(t, loc.Path, again.Path)
}

func TestResolveNotFound(t *testing.T) {
	c := New(storage.NewLocal(t.TempDir(), ""), frame.FormatParquet)

	_, err := c.Resolve(context.Background(), "GBPUSD", "4hr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, market.GBPUSD, nf.Key.Symbol)
	assert.Contains(t, nf.Path, "GBPUSD/4hr/GBPUSD_4hr.parquet")
}

func TestResolveUnknownKeysSkipStore(t *testing.T) {
	store := &countingStore{Store: storage.NewLocal(t.TempDir(), "")}
	c := New(store, "")

	_, err := c.Resolve(context.Background(), "FOOBAR", "1hr")
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
	_, err = c.Resolve(context.Background(), "EURUSD", "17min")
	assert.ErrorIs(t, err, market.ErrUnknownTimeframe)
	_, err = c.ResolveKey(context.Background(), market.DatasetKey{Symbol: "FOOBAR", Timeframe: market.TF1hr})
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)

	assert.Equal(t, 0, store.calls)
}

func TestPathForIsStable(t *testing.T) {
	parquet := New(storage.NewLocal("/data", ""), frame.FormatParquet)
	csv := New(storage.NewLocal("/data", ""), frame.FormatCSV)
	for _, key := range market.AllKeys() {
		want := string(key.Symbol) + "/" + string(key.Timeframe) + "/" + key.String()
		assert.Equal(t, want+".parquet", parquet.PathFor(key))
		assert.Equal(t, want+".csv", csv.PathFor(key))
	}
}

func TestListAvailable(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "XAUUSD/1day/XAUUSD_1day.parquet")
	touch(t, root, "EURUSD/4hr/EURUSD_4hr.parquet")
	touch(t, root, "EURUSD/1min/EURUSD_1min.parquet")
	touch(t, root, "EURUSD/1hr/EURUSD_1hr.csv")
	touch(t, root, "EURUSD/1hr/notes.txt")
	touch(t, root, "FOOBAR/1hr/FOOBAR_1hr.parquet")
	touch(t, root, "GBPUSD/1hr/EURUSD_1hr.parquet")
	c := New(storage.NewLocal(root, ""), frame.FormatParquet)

	keys, err := c.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []market.DatasetKey{
		{Symbol: market.EURUSD, Timeframe: market.TF1min},
		{Symbol: market.EURUSD, Timeframe: market.TF4hr},
		{Symbol: market.XAUUSD, Timeframe: market.TF1day},
	}, keys)
}

func TestListAvailableEmptyRoot(t *testing.T) {
	c := New(storage.NewLocal(filepath.Join(t.TempDir(), "missing"), ""), "")
	keys, err := c.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyFor(t *testing.T) {
	c := New(storage.NewLocal("/data", ""), frame.FormatParquet)
	key, ok := c.KeyFor("USDJPY/15min/USDJPY_15min.parquet")
	require.True(t, ok)
	assert.Equal(t, market.DatasetKey{Symbol: market.USDJPY, Timeframe: market.TF15min}, key)

	for _, p := range []string{"USDJPY/15min/USDJPY_15min.csv", "USDJPY/15min", "usdjpy/15min/usdjpy_15min.parquet", "a/b/c/d"} {
		_, ok := c.KeyFor(p)
		assert.False(t, ok, p)
	}
}
