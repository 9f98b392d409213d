// Package mcp exposes subnet usage reports as MCP tools.
package mcp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/paularlott/logger"
	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/ipusage/internal/cidr"
	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/report"
)

const (
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"

	ViewSummary = "summary"
	ViewFull    = "full"
)

// Server wraps the MCP server with an inventory source
type Server struct {
	mcpServer   *mcp.Server
	source      inventory.Source
	opts        report.Options
	bearerToken string
	log         logger.Logger
}

// NewServer creates a new MCP server reporting on subnets from source
func NewServer(source inventory.Source, opts report.Options, bearerToken string, l logger.Logger) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("ipusage", "1.0.0"),
		source:      source,
		opts:        opts,
		bearerToken: bearerToken,
		log:         log.OrNull(l),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.RegisterTool(
		mcp.NewTool("subnet_usage", "Report which addresses of a subnet are reserved, held by a network interface, or free",
			mcp.String("subnet_id", "Subnet ID (e.g., subnet-0abc1234)", mcp.Required()),
			mcp.String("family", "Address family to report: ipv4 (default) or ipv6. IPv6 only works for blocks small enough to list; EC2 /64 blocks are refused"),
			mcp.String("view", "summary (default) or full to include every address"),
		),
		s.handleSubnetUsage,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	s.log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			s.log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			s.log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.bearerToken)) != 1 {
			s.log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

func (s *Server) handleSubnetUsage(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	subnetID, err := req.String("subnet_id")
	if err != nil || strings.TrimSpace(subnetID) == "" {
		return nil, mcp.NewToolErrorInvalidParams("subnet_id is required")
	}

	family := strings.ToLower(req.StringOr("family", FamilyIPv4))
	if family != FamilyIPv4 && family != FamilyIPv6 {
		return nil, mcp.NewToolErrorInvalidParams("family must be ipv4 or ipv6")
	}
	view := strings.ToLower(req.StringOr("view", ViewSummary))
	if view != ViewSummary && view != ViewFull {
		return nil, mcp.NewToolErrorInvalidParams("view must be summary or full")
	}

	text, err := s.usageText(ctx, strings.TrimSpace(subnetID), family == FamilyIPv6, view == ViewFull)
	if err != nil {
		if isCallerError(err) {
			return nil, mcp.NewToolErrorInvalidParams(err.Error())
		}
		return nil, mcp.NewToolErrorInternal("failed to build usage report: " + err.Error())
	}
	return mcp.NewToolResponseText(text), nil
}

// usageText runs one reconciliation and renders it without colour
func (s *Server) usageText(ctx context.Context, subnetID string, ipv6, full bool) (string, error) {
	opts := s.opts
	opts.IPv6 = ipv6

	s.log.Info("MCP subnet usage request", "subnet_id", subnetID, "ipv6", ipv6, "full", full)

	rep, err := report.NewReconciler(s.source, opts, s.log).Run(ctx, subnetID)
	if err != nil {
		s.log.Warn("MCP subnet usage failed", "subnet_id", subnetID, "error", err)
		return "", err
	}

	var buf bytes.Buffer
	if full {
		lines := report.FormatLines(rep.Records, report.NewPalette(false))
		if err := report.WriteTable(&buf, lines, 0, true); err != nil {
			return "", fmt.Errorf("rendering addresses: %w", err)
		}
		buf.WriteString("\n")
	}
	if err := report.WriteSummary(&buf, rep.Summary); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return buf.String(), nil
}

func isCallerError(err error) bool {
	var invalid *cidr.InvalidBlockError
	var tooLarge *cidr.BlockTooLargeError
	return errors.Is(err, inventory.ErrSubnetNotFound) ||
		errors.As(err, &invalid) ||
		errors.As(err, &tooLarge)
}
