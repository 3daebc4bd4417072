package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/sdrsweep/internal/store"
)

// AuditEntry represents a single audit log entry for an MCP tool invocation.
// It captures metadata about the call without including free-text content.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends entries to <root>/.sdrsweep/audit.jsonl. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens the audit log under root. If the file cannot be
// created, a warning is printed to stderr and nil is returned.
func NewAuditLogger(root string) *AuditLogger {
	path := filepath.Join(store.LocalPath(root), "audit.jsonl")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", filepath.Dir(path), err)
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends entry as one JSON line. Safe to call on nil receiver.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil || a.file == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.file.Write(data)
}

// Close closes the log file. Safe to call on nil receiver.
func (a *AuditLogger) Close() error {
	if a == nil || a.file == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// sanitizeToolParams extracts safe metadata from tool parameters.
//
// Parameters are classified into three categories:
//   - Safe-value params: both key and value are logged (numeric settings)
//   - Presence-only params: key is logged but value is replaced with "(set)"
//   - Unknown params: not logged at all
//
// A "_param_count" key is always included.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	safeValueParams := map[string]bool{
		"min_value":                   true,
		"max_value":                   true,
		"boost_max":                   true,
		"min_pct_overlap_duty_cycles": true,
		"input_bits":                  true,
		"num_columns":                 true,
		"window_length":               true,
		"max_sweeps":                  true,
		"limit":                       true,
	}

	presenceOnlyParams := map[string]bool{
		"name":        true,
		"description": true,
		"row_key":     true,
		"output_path": true,
	}

	result := make(map[string]string)
	count := 0
	for key, val := range params {
		if isZero(val) {
			continue
		}
		count++
		if safeValueParams[key] {
			result[key] = fmt.Sprintf("%v", val)
		} else if presenceOnlyParams[key] {
			result[key] = "(set)"
		}
	}

	result["_param_count"] = fmt.Sprintf("%d", count)
	return result
}

// isZero reports whether a tool argument was left unset.
func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case float64:
		return x == 0
	case bool:
		return !x
	}
	return false
}

// auditTool logs a tool invocation.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
