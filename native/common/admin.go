package common

// AdminGate is the capability consulted by privileged engine operations. It is
// passed in explicitly so deployments and tests can scope administrative rights
// without relying on ambient global state.
type AdminGate interface {
	IsAdmin(addr [20]byte) bool
}

// SingleOwner grants the admin capability to exactly one address. The zero
// owner grants nothing.
type SingleOwner struct {
	owner [20]byte
}

// NewSingleOwner returns a gate that recognises only the supplied owner.
func NewSingleOwner(owner [20]byte) SingleOwner {
	return SingleOwner{owner: owner}
}

// IsAdmin implements the AdminGate interface.
func (s SingleOwner) IsAdmin(addr [20]byte) bool {
	if s.owner == ([20]byte{}) {
		return false
	}
	return addr == s.owner
}
