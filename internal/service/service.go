// Package service enumerates the node families the resolver serves, each
// owned by its own Monitor.
package service

// Kind partitions the fleet. Each Kind has its own Monitor and its own
// delegate registry scope.
type Kind int

const (
	Kaspa Kind = iota
	Sparkle
)

func (k Kind) String() string {
	if k == Sparkle {
		return "sparkle"
	}
	return "kaspa"
}

func Parse(s string) (Kind, bool) {
	switch s {
	case "kaspa":
		return Kaspa, true
	case "sparkle":
		return Sparkle, true
	default:
		return 0, false
	}
}

// All lists every known service kind, in definition order.
func All() []Kind {
	return []Kind{Kaspa, Sparkle}
}
