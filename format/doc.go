// Package format provides the concrete raster codecs used by pyramid
// production: PNG, JPEG, TIFF and BMP readers and writers, with
// georeferencing supplied either by the source's parameters or by an ESRI
// world file sidecar (.pgw/.jgw/.tfw/.bpw/.wld).
//
// Register the stock codecs on a builder:
//
//	b, err := pyramid.NewBuilder(params,
//	    pyramid.WithReaders(format.Readers()...),
//	    pyramid.WithWriters(format.Writers()...),
//	)
package format
