package identity

// Kind classifies the subject a request is accounted against.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSession  Kind = "session"
	KindAddress  Kind = "address"
)

// Identity is the single accounting subject resolved for a request.
// Exactly one identity is resolved per request and never re-evaluated.
type Identity struct {
	Kind  Kind
	Value string
}

// Resolve picks the caller identity from the available request fields.
// Priority is fixed: authenticated customer, then session token, then
// source address. The source address is always present, so resolution
// cannot fail.
func Resolve(customerID, sessionID, remoteAddr string) Identity {
	switch {
	case customerID != "":
		return Identity{Kind: KindCustomer, Value: customerID}
	case sessionID != "":
		return Identity{Kind: KindSession, Value: sessionID}
	default:
		return Identity{Kind: KindAddress, Value: remoteAddr}
	}
}
