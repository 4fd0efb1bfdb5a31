package gateway

import (
	"encoding/json"
	"io"
	"net/http"
)

// handleToolsList is GET /tools/: a directory of every tool the orchestrator
// can call, for client-side introspection.
func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	tools := s.registry.AsLLMTools()
	infos := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		var params any
		_ = json.Unmarshal(t.ParametersSchema(), &params)
		infos = append(infos, toolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	writeJSON(w, http.StatusOK, toolsListResponse{Tools: infos})
}

// handleToolsExecute is POST /tools/execute/{name}: runs a single tool
// directly, bypassing the orchestrator loop. Useful for clients that want
// to invoke a tool without a full conversation turn.
func (s *Server) handleToolsExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if _, ok := s.registry.Get(name); !ok {
		writeJSON(w, http.StatusNotFound, toolExecuteResponse{Success: false, Error: "tool not found: " + name})
		return
	}

	params, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "failed to read request body")
		return
	}
	if len(params) == 0 {
		params = []byte("{}")
	}

	result, err := s.registry.Execute(r.Context(), name, params)
	if err != nil {
		writeJSON(w, http.StatusOK, toolExecuteResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toolExecuteResponse{
		Success: result.Success,
		Result:  result.Result,
		Error:   result.Error,
	})
}
