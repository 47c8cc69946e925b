package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Palettes
		{
			Name:        "palette_list",
			Description: "List the palettes in the server's palette library with their colors as hex strings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "palette_parse",
			Description: "Parse LUT text (one color per line, '#RRGGBB' or 'FFRRGGBB') and return the colors it defines. Malformed lines are skipped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lut": map[string]interface{}{
						"type":        "string",
						"description": "LUT file contents",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to a LUT file, used when lut is empty",
					},
				},
			},
		},
		{
			Name:        "palette_extract",
			Description: "Derive a palette from an image and return it as colors and as LUT text that palette_parse and image_filter accept.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"upload_id": map[string]interface{}{
						"type":        "string",
						"description": "Handle returned by image_upload, used when path is empty",
					},
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colors to extract (1-256). Default 8",
						"default":     8,
					},
					"method": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"dominant", "kmeans"},
						"description": "Extraction method. Default dominant",
						"default":     "dominant",
					},
				},
			},
		},

		// Images
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_upload",
			Description: "Copy an image file into the server's upload store and return a handle for image_filter. Handles expire.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_filter",
			Description: "Apply the pixel-art filter: mosaic, quantize onto a palette with optional dithering, and optional black outlines. Writes the full image and a preview and returns their paths. Returns a null result when the palette has no colors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"upload_id": map[string]interface{}{
						"type":        "string",
						"description": "Handle returned by image_upload",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to an image file, uploaded first when upload_id is empty",
					},
					"palette": map[string]interface{}{
						"type":        "string",
						"description": "Palette name from palette_list",
					},
					"lut": map[string]interface{}{
						"type":        "string",
						"description": "Inline LUT text; takes precedence over palette",
					},
					"pixel_scale": map[string]interface{}{
						"type":        "number",
						"description": "Mosaic scale in percent (1-100). 100 keeps full resolution. Default 100",
						"default":     100,
					},
					"dither": map[string]interface{}{
						"type":        "boolean",
						"description": "Enable error-diffusion dithering. Default false",
						"default":     false,
					},
					"outlines": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw black outlines along edges. Default false",
						"default":     false,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
