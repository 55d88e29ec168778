package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qri-io/xcollection/zarr"
)

// TestStoreIntegration requires a running MinIO instance addressed by
// MINIO_ENDPOINT. It is skipped otherwise.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	prefix := fmt.Sprintf("test-xcollection-%d.zarr", time.Now().UnixNano())
	store, err := Dial(ctx, endpoint, "minioadmin", "minioadmin", false, "test-xcollection", prefix)
	require.NoError(t, err)
	assert.Equal(t, StoreType, store.Type())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, zarr.ErrNotfound)

	require.NoError(t, store.Put(ctx, "foo/.zgroup", strings.NewReader(`{"zarr_format":2}`)))
	require.NoError(t, store.Put(ctx, "foobar/.zgroup", strings.NewReader(`{"zarr_format":2}`)))

	rc, err := store.Get(ctx, "foo/.zgroup")
	require.NoError(t, err)
	d, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"zarr_format":2}`, string(d))

	keys, err := store.List(ctx, "foo/")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/.zgroup"}, keys)

	require.NoError(t, zarr.DeletePrefix(ctx, store, ""))
	keys, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyPrefixing(t *testing.T) {
	s := NewStore(nil, "bucket", "/a/b/")
	assert.Equal(t, "a/b/c/.zarray", s.key("c/.zarray"))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "c/.zarray", s.key("c/.zarray"))
}
