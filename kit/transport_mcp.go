package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Decoder turns raw tool arguments into the request an Endpoint expects.
type Decoder func(args json.RawMessage) (any, error)

// DecodeArgs unmarshals tool arguments into T. Absent or null arguments
// yield the zero T, since some clients omit arguments for no-input tools.
func DecodeArgs[T any](args json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		return v, nil
	}
	err := json.Unmarshal(args, &v)
	return v, err
}

// RegisterMCPTool serves ep as an MCP tool. The endpoint's response is sent
// back as one JSON text content; decode and endpoint errors are reported as
// tool errors rather than protocol errors.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, ep Endpoint, decode Decoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, TransportMCP)

		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		in, err := decode(args)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		out, err := ep(ctx, in)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

// InputSchema builds a JSON object schema for tool arguments.
func InputSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
