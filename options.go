package xcollection

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qri-io/xcollection/zarr"
)

// ioOptions holds the settings shared by every read and write entry point.
// Readers ignore the write-only fields.
type ioOptions struct {
	mode         zarr.PersistenceMode
	compressor   *zarr.CompressionMeta
	chunks       map[string]int
	consolidated bool
	group        *string
	logger       *zap.Logger
}

// Option configures reading or writing a collection.
type Option func(*ioOptions)

func defaultOptions() *ioOptions {
	return &ioOptions{
		mode:         zarr.ModeWrite,
		compressor:   zarr.DefaultCompressor(),
		consolidated: true,
		logger:       zap.NewNop(),
	}
}

func applyOptions(opts []Option) (*ioOptions, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.mode.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	for d, n := range o.chunks {
		if n < 1 {
			return nil, fmt.Errorf("chunk size for dimension %q must be positive, got %d", d, n)
		}
	}
	return o, nil
}

// WithMode sets the persistence mode for writes. The default is
// zarr.ModeWrite.
func WithMode(m zarr.PersistenceMode) Option {
	return func(o *ioOptions) { o.mode = m }
}

// WithCompressor sets the codec chunks are written with. nil stores chunks
// uncompressed.
func WithCompressor(c *zarr.CompressionMeta) Option {
	return func(o *ioOptions) { o.compressor = c }
}

// WithChunks sets chunk lengths per dimension name. Dimensions without an
// entry are stored in a single chunk.
func WithChunks(chunks map[string]int) Option {
	return func(o *ioOptions) { o.chunks = chunks }
}

// WithConsolidated controls writing the root .zmetadata document.
func WithConsolidated(c bool) Option {
	return func(o *ioOptions) { o.consolidated = c }
}

// WithGroup asks for the collection to be nested under a root group. This is
// not supported, and writes given it fail with ErrNotImplemented.
func WithGroup(group string) Option {
	return func(o *ioOptions) { o.group = &group }
}

// WithLogger sets the logger reads and writes report progress to. A nil
// logger keeps the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *ioOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
