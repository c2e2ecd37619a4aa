// Package mcp exposes the solcal HTTP API as Model Context Protocol tools
// over a line-delimited JSON-RPC stream.
package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const protocolVersion = "2024-11-05"

type Server struct {
	apiURL      string
	apiUsername string
	apiPassword string
	httpClient  *http.Client
	log         zerolog.Logger
}

func NewServer(apiURL, username, password string, log zerolog.Logger) *Server {
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &Server{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: username,
		apiPassword: password,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log.With().Str("component", "mcp").Logger(),
	}
}

// Run answers one request per input line until r is exhausted
func (s *Server) Run(r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	enc := json.NewEncoder(w)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read request: %w", err)
		}

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			var req JSONRPCRequest
			if jerr := json.Unmarshal([]byte(trimmed), &req); jerr != nil {
				s.log.Warn().Err(jerr).Msg("skip malformed request")
			} else if req.ID != nil {
				if werr := enc.Encode(s.HandleRequest(req)); werr != nil {
					return fmt.Errorf("write response: %w", werr)
				}
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// HandleRequest dispatches a single JSON-RPC request
func (s *Server) HandleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: codeMethodNotFound, Message: "Method not found"},
		}
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		ServerInfo: serverInfo{Name: "solcal-mcp", Version: "1.0.0"},
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: codeInvalidParams, Message: "Invalid params"},
		}
	}

	result, isError := s.callTool(params.Name, params.Arguments)
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *Server) callTool(name string, args map[string]interface{}) (string, bool) {
	arg := func(key string) string {
		if v, ok := args[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
	calendar := arg("calendar_id")
	if calendar == "" {
		calendar = "personal"
	}

	switch name {
	case "solcal_list_calendars":
		return s.apiRequest("GET", "/api/v1/calendars", nil)
	case "solcal_agenda":
		q := url.Values{}
		if v := arg("from"); v != "" {
			q.Set("from", v)
		}
		if v := arg("to"); v != "" {
			q.Set("to", v)
		}
		path := "/api/v1/agenda"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return s.apiRequest("GET", path, nil)
	case "solcal_month":
		return s.apiRequest("GET", fmt.Sprintf("/api/v1/month/%s/%s", arg("year"), arg("month")), nil)
	case "solcal_week":
		return s.apiRequest("GET", "/api/v1/week/"+url.PathEscape(arg("start_date")), nil)
	case "solcal_create_event":
		body := make(map[string]interface{}, len(args))
		for k, v := range args {
			if k != "calendar_id" {
				body[k] = v
			}
		}
		return s.apiRequest("POST", "/api/v1/calendars/"+url.PathEscape(calendar)+"/events", body)
	case "solcal_delete_event":
		return s.apiRequest("DELETE", "/api/v1/calendars/"+url.PathEscape(calendar)+"/events/"+url.PathEscape(arg("uid")), nil)
	case "solcal_delete_occurrence":
		return s.apiRequest("DELETE", "/api/v1/calendars/"+url.PathEscape(calendar)+"/events/"+url.PathEscape(arg("occurrence_id"))+"?occurrence=true", nil)
	default:
		return "Unknown tool: " + name, true
	}
}

func (s *Server) apiRequest(method, path string, body interface{}) (string, bool) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Sprintf("Error encoding request: %v", err), true
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.apiURL+path, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}
	if s.apiUsername != "" {
		req.SetBasicAuth(s.apiUsername, s.apiPassword)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "Done", false
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}
	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}
	return pretty.String(), false
}
