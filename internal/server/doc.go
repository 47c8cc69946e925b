// Package server implements the MCP (Model Context Protocol) front end of
// pixel-palette.
//
// It exposes the palette library and the pixel-art filter as MCP tools so
// that an assistant can list palettes, derive new ones from images and
// render filtered images without going through the web form.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Palettes:
//   - palette_list: Palettes in the library with their colors
//   - palette_parse: Colors defined by LUT text or a LUT file
//   - palette_extract: Palette derived from an image, as colors and LUT text
//
// Images:
//   - image_load: Dimensions and format of an image file
//   - image_upload: Copy an image into the upload store, returning a handle
//   - image_filter: Mosaic, quantize, dither and outline an image
//
// # Uploads
//
// image_filter reads its source from the upload store, which keeps every
// upload under an opaque handle until it expires. Passing a path instead of
// a handle uploads the file first. Results are written next to the upload
// and their paths are returned; the store deletes them on expiry.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A palette without colors is not an error: image_filter reports
// "filtered": false and writes nothing.
//
// # Usage
//
//	srv := server.New(processor, version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal().Err(err).Msg("mcp server failed")
//	}
package server
