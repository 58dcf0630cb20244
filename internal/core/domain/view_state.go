package domain

// Phase is a state of the connection controller's state machine.
type Phase string

const (
	// PhaseInit is the state before the setup routine has run.
	PhaseInit Phase = "init"
	// PhaseUnauthenticated is terminal: no session credential was present.
	PhaseUnauthenticated Phase = "unauthenticated"
	// PhaseExchanging means a token exchange is in flight.
	PhaseExchanging Phase = "exchanging"
	// PhaseCheckingStatus means a status check is in flight.
	PhaseCheckingStatus Phase = "checking_status"
	// PhaseReady is the steady state after the primary branch settled.
	PhaseReady Phase = "ready"
	// PhaseTornDown means the owning view went away.
	PhaseTornDown Phase = "torn_down"
)

// IsTerminal reports whether no further transitions can happen.
func (p Phase) IsTerminal() bool {
	return p == PhaseUnauthenticated || p == PhaseTornDown
}

// ViewState is what one controller activation publishes to its view.
// It is never persisted; every activation rebuilds it.
type ViewState struct {
	UserInfo     *UserInfo  `json:"userInfo,omitempty"`
	Connection   Connection `json:"connection"`
	IsConnecting bool       `json:"isConnecting"`
	Error        string     `json:"error"`
	IsLoading    bool       `json:"isLoading"`
}

// Clone returns a copy that shares no pointers with the receiver.
func (s ViewState) Clone() ViewState {
	if s.UserInfo != nil {
		u := *s.UserInfo
		s.UserInfo = &u
	}
	return s
}
