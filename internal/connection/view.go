package connection

import "fmt"

// The methods below exist solely to satisfy view.ConnectionView without
// internal/view importing this generic package directly (which would
// force view to be generic too). They project plain, non-generic data.

func (c *Connection[T]) UID() uint64       { return c.node.UID }
func (c *Connection[T]) UIDString() string { return c.node.UIDString() }
func (c *Connection[T]) FQDN() string      { return c.node.FQDN }
func (c *Connection[T]) Service() string   { return c.node.Service.String() }
func (c *Connection[T]) Protocol() string  { return c.params.Protocol.String() }
func (c *Connection[T]) Encoding() string  { return c.params.Encoding.String() }
func (c *Connection[T]) Tls() string       { return c.params.Tls.String() }
func (c *Connection[T]) Network() string   { return c.node.Network }

// Version, Cores, Memory, Capacity report the delegate's Caps fields.
// If Caps has not been learned yet, Version returns "n/a" and the others
// return 0.
func (c *Connection[T]) Version() string {
	if caps := c.Delegate().caps.Load(); caps != nil {
		return caps.Version
	}
	return "n/a"
}

func (c *Connection[T]) Cores() uint64 {
	if caps := c.Delegate().caps.Load(); caps != nil {
		return caps.CPUCores
	}
	return 0
}

func (c *Connection[T]) Memory() uint64 {
	if caps := c.Delegate().caps.Load(); caps != nil {
		return caps.TotalMemory
	}
	return 0
}

func (c *Connection[T]) Capacity() uint64 {
	if caps := c.Delegate().caps.Load(); caps != nil {
		return caps.ClientLimit
	}
	return 0
}

// DelegateSystemID reports the delegate's learned system id.
func (c *Connection[T]) DelegateSystemID() uint64 { return c.Delegate().SystemID() }

// DelegateChain renders ResolveDelegators() as display strings, newest
// first, matching the original status.rs projection.
func (c *Connection[T]) DelegateChain() []string {
	delegators := c.ResolveDelegators()
	if len(delegators) == 0 {
		return nil
	}
	out := make([]string, 0, len(delegators))
	for _, d := range delegators {
		out = append(out, fmt.Sprintf("[%016x] %s", d.SystemID(), d.Address()))
	}
	return out
}
