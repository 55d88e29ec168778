// Package s3 provides an Amazon S3 implementation of zarr.Store, so a
// collection archive can live in a bucket instead of a local directory.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "runs/cesm.zarr")
//	c, err := xcollection.OpenCollection(ctx, store)
//
// Keys are stored beneath the root prefix exactly as zarr lays them out, so
// the same archive can be opened by other zarr implementations with an
// s3:// URL.
package s3
