package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/palette"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
)

// defaultExtractCount is the palette size palette_extract produces when the
// caller does not ask for one.
const defaultExtractCount = 8

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "palette_list", "image_filter").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	logger := log.With().Str("tool", params.Name).Logger()
	start := time.Now()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		logger.Warn().Err(err).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("tool finished")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Calls into the palette library, the upload store or the pipeline
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if s.processor == nil {
		return nil, errors.New("server has no processor configured")
	}

	switch name {
	// Palettes
	case "palette_list":
		return s.handlePaletteList()
	case "palette_parse":
		return s.handlePaletteParse(args)
	case "palette_extract":
		return s.handlePaletteExtract(args)

	// Images
	case "image_load":
		return s.handleImageLoad(args)
	case "image_upload":
		return s.handleImageUpload(args)
	case "image_filter":
		return s.handleImageFilter(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Palette Handlers ===

// PaletteInfo describes a palette in tool results.
type PaletteInfo struct {
	Name      string   `json:"name,omitempty"`
	Colors    int      `json:"colors"`
	Hex       []string `json:"hex"`
	Truncated bool     `json:"truncated,omitempty"`
}

func newPaletteInfo(name string, p palette.Palette) PaletteInfo {
	hex := p.Hexes()
	if hex == nil {
		hex = []string{}
	}
	return PaletteInfo{
		Name:      name,
		Colors:    len(p),
		Hex:       hex,
		Truncated: p.Truncated(),
	}
}

func (s *Server) handlePaletteList() (interface{}, error) {
	lib := s.processor.Library()
	if lib == nil {
		return nil, errors.New("no palette library configured")
	}
	entries, err := lib.List()
	if err != nil {
		return nil, err
	}

	palettes := make([]PaletteInfo, len(entries))
	for i, e := range entries {
		palettes[i] = newPaletteInfo(e.Name, e.Colors)
	}
	return map[string]interface{}{
		"count":    len(palettes),
		"palettes": palettes,
	}, nil
}

type paletteParseArgs struct {
	LUT  string `json:"lut"`
	Path string `json:"path"`
}

func (s *Server) handlePaletteParse(args json.RawMessage) (interface{}, error) {
	var a paletteParseArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	switch {
	case a.LUT != "":
		return newPaletteInfo("", palette.Parse([]byte(a.LUT))), nil
	case a.Path != "":
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read LUT file: %w", err)
		}
		return newPaletteInfo(filepath.Base(a.Path), palette.Parse(data)), nil
	default:
		return nil, errors.New("either lut or path is required")
	}
}

type paletteExtractArgs struct {
	Path     string `json:"path"`
	UploadID string `json:"upload_id"`
	Count    int    `json:"count"`
	Method   string `json:"method"`
}

type paletteExtractResult struct {
	PaletteInfo
	Method string `json:"method"`
	LUT    string `json:"lut"`
}

func (s *Server) handlePaletteExtract(args json.RawMessage) (interface{}, error) {
	var a paletteExtractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = defaultExtractCount
	}
	if a.Count < 1 || a.Count > palette.TableSize {
		return nil, fmt.Errorf("count must be within 1..%d, got %d", palette.TableSize, a.Count)
	}
	method, err := palette.ParseMethod(a.Method)
	if err != nil {
		return nil, err
	}

	img, source, err := s.sourceImage(a.Path, a.UploadID)
	if err != nil {
		return nil, err
	}

	p := palette.SortByLuminance(palette.Extract(img, a.Count, method))
	return paletteExtractResult{
		PaletteInfo: newPaletteInfo("", p),
		Method:      string(method),
		LUT:         string(palette.FormatLUT(p, fmt.Sprintf("extracted from %s (%s)", source, method))),
	}, nil
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	_, info, err := imaging.LoadFile(a.Path)
	if err != nil {
		return nil, err
	}
	return info, nil
}

type imageUploadResult struct {
	UploadID  string             `json:"upload_id"`
	Name      string             `json:"name"`
	Image     *imaging.ImageInfo `json:"image"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

func (s *Server) handleImageUpload(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.upload(a.Path)
}

// upload copies the file at path into the store and checks that it decodes.
func (s *Server) upload(path string) (*imageUploadResult, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	store := s.processor.Store()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	u, err := store.Save(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	_, info, err := store.Image(u.ID)
	if err != nil {
		store.Evict(u.ID)
		return nil, err
	}

	res := &imageUploadResult{UploadID: u.ID, Name: u.Name, Image: info}
	if ttl := store.TTL(); ttl > 0 {
		expires := u.Created.Add(ttl)
		res.ExpiresAt = &expires
	}
	return res, nil
}

// sourceImage resolves an image from a file path or an upload handle and
// returns it with a label for messages.
func (s *Server) sourceImage(path, uploadID string) (image.Image, string, error) {
	switch {
	case path != "":
		img, _, err := imaging.LoadFile(path)
		return img, filepath.Base(path), err
	case uploadID != "":
		store := s.processor.Store()
		u, err := store.Lookup(uploadID)
		if err != nil {
			return nil, "", err
		}
		img, _, err := store.Image(uploadID)
		return img, u.Name, err
	default:
		return nil, "", errors.New("either path or upload_id is required")
	}
}

type imageFilterArgs struct {
	UploadID   string   `json:"upload_id"`
	Path       string   `json:"path"`
	Palette    string   `json:"palette"`
	LUT        string   `json:"lut"`
	PixelScale *float64 `json:"pixel_scale"`
	Dither     bool     `json:"dither"`
	Outlines   bool     `json:"outlines"`
}

type imageFilterResult struct {
	Filtered bool `json:"filtered"`
	*pipeline.Output
	FullPath    string `json:"full_path,omitempty"`
	PreviewPath string `json:"preview_path,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (s *Server) handleImageFilter(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageFilterArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	percent := 100.0
	if a.PixelScale != nil {
		percent = *a.PixelScale
	}
	if percent < 1 || percent > 100 {
		return nil, fmt.Errorf("pixel_scale must be within 1..100, got %g", percent)
	}

	req := pipeline.Request{
		UploadID:    a.UploadID,
		PaletteName: a.Palette,
		PaletteData: []byte(a.LUT),
		Options: pipeline.Options{
			Scale:    imaging.ScaleFromPercent(percent),
			Dither:   a.Dither,
			Outlines: a.Outlines,
		},
	}

	if req.UploadID == "" {
		if a.Path == "" {
			return nil, errors.New("either upload_id or path is required")
		}
		up, err := s.upload(a.Path)
		if err != nil {
			return nil, err
		}
		req.UploadID = up.UploadID
	}

	out, err := s.processor.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return imageFilterResult{Message: "palette has no colors, nothing was rendered"}, nil
	}

	store := s.processor.Store()
	fullPath, err := store.Path(out.UploadID, out.FullName)
	if err != nil {
		return nil, err
	}
	previewPath, err := store.Path(out.UploadID, out.PreviewName)
	if err != nil {
		return nil, err
	}

	return imageFilterResult{
		Filtered:    true,
		Output:      out,
		FullPath:    fullPath,
		PreviewPath: previewPath,
	}, nil
}
