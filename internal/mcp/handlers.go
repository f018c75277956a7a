package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lwi/internal/debug"
)

const defaultMaxResults = 100

// SearchParams are the arguments of the search_symbols tool.
type SearchParams struct {
	Pattern string `json:"pattern"`
	Max     int    `json:"max,omitempty"`
}

// SymbolResult is one search hit in the response payload.
type SymbolResult struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Project uint32 `json:"project"`
}

// SearchResponse is the search_symbols payload.
type SearchResponse struct {
	Success     bool           `json:"success"`
	Pattern     string         `json:"pattern"`
	Count       int            `json:"count"`
	Truncated   bool           `json:"truncated,omitempty"`
	Results     []SymbolResult `json:"results"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SearchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("search_symbols", err)
	}
	if params.Pattern == "" {
		return createErrorResponse("search_symbols", errors.New("pattern is required"))
	}
	if params.Max <= 0 {
		params.Max = defaultMaxResults
	}

	debug.LogMCP("search_symbols pattern=%q max=%d\n", params.Pattern, params.Max)

	resp := &SearchResponse{Success: true, Pattern: params.Pattern}
	idx := s.sync.Index().Load()
	for ref := range idx.Search(params.Pattern) {
		if len(resp.Results) >= params.Max {
			resp.Truncated = true
			break
		}
		resp.Results = append(resp.Results, SymbolResult{
			Name:    ref.Name,
			Kind:    ref.Kind.String(),
			Path:    ref.Path,
			Line:    ref.Line,
			Column:  ref.Column,
			Project: uint32(ref.Project),
		})
	}
	resp.Count = len(resp.Results)
	if resp.Results == nil {
		resp.Results = []SymbolResult{}
	}

	// An exact miss often means a near-miss: offer close names.
	if resp.Count == 0 && !strings.ContainsAny(params.Pattern, "*?") {
		resp.Suggestions = suggestNames(params.Pattern, idx.Names())
	}

	return createJSONResponse(resp)
}

// suggestNames returns the closest indexed names to a missed lookup.
func suggestNames(pattern string, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	matches, err := edlib.FuzzySearchSetThreshold(pattern, names, 3, 0.8, edlib.JaroWinkler)
	if err != nil {
		return nil
	}
	out := matches[:0]
	for _, m := range matches {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// StatusResponse is the workspace_status payload.
type StatusResponse struct {
	Success      bool         `json:"success"`
	Generation   uint64       `json:"generation"`
	SolutionPath string       `json:"solution_path"`
	ProjectCount int          `json:"project_count"`
	UnitCount    int          `json:"unit_count"`
	SymbolCount  int          `json:"symbol_count"`
	IndexedNames int          `json:"indexed_names"`
	Watch        *WatchStatus `json:"watch,omitempty"`
}

// WatchStatus summarizes aggregator activity.
type WatchStatus struct {
	EventsSeen     int64  `json:"events_seen"`
	BatchesApplied int64  `json:"batches_applied"`
	BatchesFailed  int64  `json:"batches_failed"`
	Suppressed     int64  `json:"suppressed"`
	Deferred       int64  `json:"deferred"`
	Pending        int    `json:"pending"`
	InFlight       bool   `json:"in_flight"`
	LastEvent      string `json:"last_event,omitempty"`
}

func (s *Server) handleWorkspaceStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.sync.CurrentSnapshot()
	idx := s.sync.Index().Load()

	resp := &StatusResponse{
		Success:      true,
		Generation:   snap.Generation,
		SolutionPath: snap.SolutionPath,
		ProjectCount: len(snap.Projects()),
		UnitCount:    snap.UnitCount(),
		SymbolCount:  snap.SymbolCount(),
		IndexedNames: idx.Len(),
	}

	if s.aggregator != nil {
		stats, lastEvent := s.aggregator.GetStats()
		ws := &WatchStatus{
			EventsSeen:     stats.EventsSeen,
			BatchesApplied: stats.BatchesApplied,
			BatchesFailed:  stats.BatchesFailed,
			Suppressed:     stats.Suppressed,
			Deferred:       stats.Deferred,
			Pending:        s.aggregator.PendingCount(),
			InFlight:       s.aggregator.InFlight(),
		}
		if !lastEvent.IsZero() {
			ws.LastEvent = lastEvent.Format(time.RFC3339)
		}
		resp.Watch = ws
	}

	return createJSONResponse(resp)
}
