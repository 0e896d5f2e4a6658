// Package server exposes read-only HTTP query endpoints over a local node
// (chain info, application state) plus a Prometheus metrics endpoint.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/linera-io/linera-chainclient/pkg/localnode"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// QueryHandlers serves chain_info_query and query_application over HTTP.
type QueryHandlers struct {
	node *localnode.LocalNode
}

func NewQueryHandlers(node *localnode.LocalNode) *QueryHandlers {
	return &QueryHandlers{node: node}
}

// HandleChainInfo handles GET /api/chains?chain_id=<hex>.
func (h *QueryHandlers) HandleChainInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	chainID, err := chainIDFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	info, err := h.node.HandleChainInfoQuery(chainID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := json.NewEncoder(w).Encode(info); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

// HandleApplicationState handles GET /api/chains/application?chain_id=<hex>.
func (h *QueryHandlers) HandleApplicationState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	chainID, err := chainIDFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, err := h.node.QueryApplication(chainID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := json.NewEncoder(w).Encode(state); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func chainIDFromQuery(r *http.Request) (types.ChainID, error) {
	hexID := r.URL.Query().Get("chain_id")
	if hexID == "" {
		return types.ChainID{}, fmt.Errorf("chain_id query parameter is required")
	}
	return types.ChainIDFromHex(hexID)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
