// Package imaging provides the raster stages of the palette filter.
//
// This package decodes uploaded images and implements the individual stages of
// the filter pipeline: the mosaic resampler, palette quantization with optional
// error-diffusion dithering, the outline overlay, and output encoding with a
// bounded preview. The stages are thin wrappers around established imaging
// libraries; none of the resampling, dithering or edge kernels are implemented
// here from scratch.
//
// # Coordinate System
//
// Stage outputs always start at (0,0), whatever the bounds of the input:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// # Thread Safety
//
// All functions are stateless and can be called concurrently on different
// images. Inputs are never modified; every stage returns a new image.
//
// # Color Handling
//
// Alpha is not part of the palette model. Opaque copies the straight RGB
// values of an image and forces every pixel opaque, which is how the pipeline
// prepares images before quantization.
//
// # Error Handling
//
// Functions return errors for:
//   - Undecodable or unsupported image data (ErrDecode)
//   - Unknown dither matrices, edge operators or output formats
//   - Encoding errors during image output
package imaging
