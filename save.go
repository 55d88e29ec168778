package xcollection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/qri-io/xcollection/zarr"
)

// Format names the file format Save writes each dataset in.
type Format string

const (
	FormatZarr   Format = "zarr"
	FormatNetCDF Format = "nc"
)

// Engine names the reader ReadCollection opens files with.
type Engine string

const (
	EngineZarr    Engine = "zarr"
	EngineNetCDF4 Engine = "netcdf4"
)

// Extension returns the file extension the engine reads.
func (e Engine) Extension() (string, error) {
	switch e {
	case EngineZarr:
		return "zarr", nil
	case EngineNetCDF4:
		return "nc", nil
	}
	return "", fmt.Errorf("%w: engine %q", ErrUnsupportedFormat, string(e))
}

const dirPermissionBits = 0755

// Save writes each dataset to <dir>/<key>.<format>, creating dir if needed.
// Zarr datasets are written as local directory stores.
func (c *Collection) Save(ctx context.Context, dir string, format Format, opts ...Option) error {
	o, err := applyOptions(opts)
	if err != nil {
		return err
	}
	switch format {
	case FormatZarr, FormatNetCDF:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	for _, k := range c.keys {
		if err := validateStoreName(k); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, dirPermissionBits); err != nil {
		return err
	}

	for _, it := range c.Items() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, it.Key+"."+string(format))
		o.logger.Debug("saving dataset", zap.String("key", it.Key), zap.String("path", path))

		switch format {
		case FormatZarr:
			err = saveZarr(ctx, path, it.Dataset, o)
		case FormatNetCDF:
			err = writeNetCDF(path, it.Dataset)
		}
		if err != nil {
			return fmt.Errorf("saving %q: %w", it.Key, err)
		}
	}
	o.logger.Info("saved collection", zap.Int("keys", c.Len()), zap.String("dir", dir), zap.String("format", string(format)))
	return nil
}

func saveZarr(ctx context.Context, path string, ds *Dataset, o *ioOptions) error {
	store, err := zarr.NewLocalStore(path)
	if err != nil {
		return err
	}
	if err := writeDataset(ctx, store, "", ds, o); err != nil {
		return err
	}
	return finishMetadata(ctx, store, o)
}

// ReadCollection opens every file in dir with the engine's extension. Each
// file's name, without the extension, becomes its key.
func ReadCollection(ctx context.Context, dir string, engine Engine, opts ...Option) (*Collection, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	ext, err := engine.Extension()
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*."+ext))
	if err != nil {
		return nil, err
	}

	c := &Collection{datasets: map[string]*Dataset{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strings.TrimSuffix(filepath.Base(f), "."+ext)

		var ds *Dataset
		switch engine {
		case EngineZarr:
			var store *zarr.LocalStore
			if store, err = zarr.NewLocalStore(f); err == nil {
				ds, err = openDataset(ctx, store, "", o)
			}
		case EngineNetCDF4:
			ds, err = readNetCDF(f)
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", f, err)
		}
		if err := c.Set(key, ds); err != nil {
			return nil, err
		}
	}
	o.logger.Info("read collection", zap.Int("keys", c.Len()), zap.String("dir", dir), zap.String("engine", string(engine)))
	return c, nil
}
