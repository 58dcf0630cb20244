package domain

// TransportError is a failure to complete a round trip with a service:
// the request never got an answer the service meant to give.
type TransportError struct {
	// Op names the call that failed (e.g. "exchange").
	Op string
	// Message is a short human-readable cause.
	Message string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return e.Op + ": " + e.Message
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": transport failure"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
