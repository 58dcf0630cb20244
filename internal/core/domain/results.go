package domain

// ExchangeResult is the outcome of the token exchange service.
// It mirrors the JSON payload of POST /connect/token.
type ExchangeResult struct {
	Success            bool   `json:"success"`
	WorkspaceReference string `json:"workspaceReference,omitempty"`
	WorkspaceName      string `json:"workspaceName,omitempty"`
	Error              string `json:"error,omitempty"`
}

// StatusResult is the outcome of the connection status service.
type StatusResult struct {
	Success   bool   `json:"success"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// DisconnectResult is the outcome of the disconnect service.
type DisconnectResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
