// Package xcollection holds keyed collections of labeled N-dimensional
// datasets and applies operations across every member at once.
//
// A Collection maps string keys to *Dataset values in insertion order.
// Combinators such as Choose, Filter, KeyMap and Map return new collections,
// and Weighted reduces every dataset against a shared weights array.
//
// Collections persist either to a single zarr hierarchy, where each key is a
// child group of the store root (ToZarr, OpenCollection), or to a directory
// holding one zarr store or netCDF file per key (Save, ReadCollection).
//
//	c, err := xcollection.New(map[string]interface{}{"ssp245": a, "ssp585": b})
//	if err != nil {
//		return err
//	}
//	store, err := zarr.NewLocalStore("runs.zarr")
//	if err != nil {
//		return err
//	}
//	return c.ToZarr(ctx, store, xcollection.WithMode(zarr.ModeWriteFail))
package xcollection
