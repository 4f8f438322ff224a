package types

// Event is a structured notification describing a state change applied by one
// of the native engines. Attributes hold the canonical string encoding of each
// payload field so downstream consumers (RPC, indexers) never need to know the
// engine's internal types.
type Event struct {
	Type       string
	Attributes map[string]string
}
