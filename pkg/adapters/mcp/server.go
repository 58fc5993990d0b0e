package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/embedding"
	"github.com/aretw0/latentscope/pkg/render"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultImageSize is the side of PNGs returned by decode_latent.
const DefaultImageSize = 280

const (
	modelURI = "latentscope://model"
	frameURI = "latentscope://frame"
)

// Explorer defines what the MCP server needs from the explorer.
type Explorer interface {
	Snapshot() domain.Snapshot
	Info() (domain.ModelInfo, bool)
	Hover(ctx context.Context, cursor domain.Cursor) (bool, error)
	Decode(ctx context.Context, latent domain.LatentVector) (*domain.PixelBuffer, error)
	Frame() (*domain.PixelBuffer, func())
	Painted() int
}

// HoverResponse is the structured result of hover_latent.
type HoverResponse struct {
	Accepted bool            `json:"accepted" jsonschema_description:"Whether the decoded frame is now on screen"`
	State    domain.Snapshot `json:"state" jsonschema_description:"Explorer state after the hover"`
}

// Server exposes an Explorer as an MCP Server.
type Server struct {
	explorer   Explorer
	embeddings *embedding.Set
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance. embeddings may be nil.
func NewServer(explorer Explorer, embeddings *embedding.Set) *Server {
	s := &Server{
		explorer:   explorer,
		embeddings: embeddings,
		mcpServer:  server.NewMCPServer("latentscope-mcp", strings.TrimSpace(latentscope.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mostly for tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: hover_latent
	hoverTool := mcp.NewTool("hover_latent",
		mcp.WithDescription("Move the pointer to a latent coordinate and decode it into the displayed frame."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("First latent coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Second latent coordinate")),
		mcp.WithOutputSchema[HoverResponse](),
	)
	s.mcpServer.AddTool(hoverTool, mcp.NewStructuredToolHandler(s.handleHover))

	// TOOL: decode_latent
	s.mcpServer.AddTool(mcp.NewTool("decode_latent",
		mcp.WithDescription("Decode a latent coordinate into a PNG without changing the displayed frame."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("First latent coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Second latent coordinate")),
		mcp.WithNumber("size", mcp.Description("Side of the returned image in pixels (default 280)")),
	), s.handleDecode)

	// TOOL: explorer_state
	s.mcpServer.AddTool(mcp.NewTool("explorer_state",
		mcp.WithDescription("Get the load state, displayed latent and frame sequence."),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Snapshot, error) {
		return s.explorer.Snapshot(), nil
	}))

	if s.embeddings == nil {
		return
	}

	// TOOL: nearest_embedding
	s.mcpServer.AddTool(mcp.NewTool("nearest_embedding",
		mcp.WithDescription("Find the known embedding closest to a latent coordinate."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("First latent coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Second latent coordinate")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		x, y, err := coordinates(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p, err := s.embeddings.Nearest(x, y)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(p)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func coordinates(request mcp.CallToolRequest) (float64, float64, error) {
	x, err := request.RequireFloat("x")
	if err != nil {
		return 0, 0, err
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (s *Server) handleHover(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (HoverResponse, error) {
	x, y, err := coordinates(request)
	if err != nil {
		return HoverResponse{}, err
	}
	accepted, err := s.explorer.Hover(ctx, domain.Cursor{X: x, Y: y})
	if err != nil {
		return HoverResponse{}, fmt.Errorf("decode failed: %w", err)
	}
	return HoverResponse{Accepted: accepted, State: s.explorer.Snapshot()}, nil
}

func (s *Server) handleDecode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, y, err := coordinates(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	size := int(request.GetFloat("size", DefaultImageSize))
	if size <= 0 || size > render.MaxSize {
		return mcp.NewToolResultError(fmt.Sprintf("size must be in 1..%d", render.MaxSize)), nil
	}

	latent := domain.LatentVector{X: x, Y: y}
	buf, err := s.explorer.Decode(ctx, latent)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("decode failed: %v", err)), nil
	}
	defer buf.Release()

	var png bytes.Buffer
	if err := render.EncodePNG(&png, buf, size); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultImage(
		fmt.Sprintf("decoded %s", latent.Rounded(3)),
		base64.StdEncoding.EncodeToString(png.Bytes()),
		"image/png",
	), nil
}

func (s *Server) registerResources() {
	// EXPOSE: latentscope://model
	s.mcpServer.AddResource(mcp.NewResource(modelURI, "Decoder Model Summary",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info, ok := s.explorer.Info()
		if !ok {
			return nil, fmt.Errorf("model not ready (%s)", s.explorer.Snapshot().Status.State)
		}
		jsonBytes, _ := json.Marshal(info)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      modelURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: latentscope://frame (reading it counts as a paint)
	s.mcpServer.AddResource(mcp.NewResource(frameURI, "Displayed Frame",
		mcp.WithMIMEType("image/png"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		buf, done := s.explorer.Frame()
		if buf == nil {
			done()
			return nil, fmt.Errorf("no frame decoded yet")
		}
		var png bytes.Buffer
		err := render.EncodePNG(&png, buf, render.DefaultSize)
		done()
		if err != nil {
			return nil, fmt.Errorf("failed to encode frame: %w", err)
		}
		s.explorer.Painted()

		return []mcp.ResourceContents{
			mcp.BlobResourceContents{
				URI:      frameURI,
				MIMEType: "image/png",
				Blob:     base64.StdEncoding.EncodeToString(png.Bytes()),
			},
		}, nil
	})
}
