package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qri-io/xcollection"
	"github.com/qri-io/xcollection/zarr"
)

// Sources and targets for convert besides the directory formats.
const archive = "archive"

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [store]",
		Short: "Print every dataset in a zarr archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), c.String())
			return nil
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [store]",
		Short: "List the keys of a zarr archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			for _, k := range c.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert [src] [dst]",
		Short: "Convert between per-key file directories and zarr archives",
		Long: `Reads a collection from src and writes it to dst.

--from is "zarr" or "netcdf4" to read a directory of per-key files, or
"archive" to open a zarr archive. --to is "zarr" or "nc" to write a
directory of per-key files, or "archive" to write a zarr archive.

Example:
  xcollection convert ./runs ./runs.zarr --from netcdf4 --to archive`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, dst := args[0], args[1]

			var c *xcollection.Collection
			var err error
			if from == archive {
				c, err = a.openCollection(cmd, src)
			} else {
				c, err = xcollection.ReadCollection(ctx, src, xcollection.Engine(from), xcollection.WithLogger(a.logger))
			}
			if err != nil {
				return err
			}

			if to == archive {
				return a.writeArchive(cmd, c, dst, zarr.ModeWrite)
			}
			opts, err := a.writeOptions(zarr.ModeWrite)
			if err != nil {
				return err
			}
			if err := c.Save(ctx, dst, xcollection.Format(to), opts...); err != nil {
				return err
			}
			a.logger.Info("converted collection", zap.String("src", src), zap.String("dst", dst), zap.Int("keys", c.Len()))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", string(xcollection.EngineZarr), `source: "zarr", "netcdf4" or "archive"`)
	cmd.Flags().StringVar(&to, "to", archive, `target: "zarr", "nc" or "archive"`)
	return cmd
}

func (a *app) copyCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "copy [src-store] [dst-store]",
		Short: "Copy a zarr archive between stores",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := zarr.ParsePersistenceMode(mode)
			if err != nil {
				return err
			}
			c, err := a.openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			return a.writeArchive(cmd, c, args[1], m)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(zarr.ModeWrite), "persistence mode: w, w-, a or r+")
	return cmd
}

func (a *app) openCollection(cmd *cobra.Command, ref string) (*xcollection.Collection, error) {
	store, err := a.cfg.OpenStore(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	return xcollection.OpenCollection(cmd.Context(), store, xcollection.WithLogger(a.logger))
}

func (a *app) writeArchive(cmd *cobra.Command, c *xcollection.Collection, ref string, mode zarr.PersistenceMode) error {
	store, err := a.cfg.ResolveStore(cmd.Context(), ref)
	if err != nil {
		return err
	}
	opts, err := a.writeOptions(mode)
	if err != nil {
		return err
	}
	return c.ToZarr(cmd.Context(), store, opts...)
}

func (a *app) writeOptions(mode zarr.PersistenceMode) ([]xcollection.Option, error) {
	cm, err := a.cfg.Write.CompressionMeta()
	if err != nil {
		return nil, err
	}
	return []xcollection.Option{
		xcollection.WithMode(mode),
		xcollection.WithCompressor(cm),
		xcollection.WithChunks(a.cfg.Write.Chunks),
		xcollection.WithConsolidated(a.cfg.Write.Consolidated),
		xcollection.WithLogger(a.logger),
	}, nil
}
