package capture

import (
	"context"
	"fmt"
)

// Method is a capture strategy, tried in a fixed fallback order. A method
// that fails is permanently disqualified for the remaining lifetime of the
// owning Service (spec §4.4): a transient host hiccup on preferred methods
// should not cause per-frame thrashing between strategies.
type Method string

const (
	MethodStream     Method = "stream"
	MethodHWEncode   Method = "hw-encode"
	MethodSWEncode   Method = "sw-encode"
	MethodScreenshot Method = "screenshot"
)

// methodOrder is the fallback chain, most to least preferred.
var methodOrder = []Method{MethodStream, MethodHWEncode, MethodSWEncode, MethodScreenshot}

// frameSource produces one JPEG-encoded frame using method m.
type frameSource func(ctx context.Context, method Method) ([]byte, error)

// methodChain walks methodOrder, skipping permanently disqualified methods,
// and reports which method is currently active.
type methodChain struct {
	disqualified map[Method]bool
	active       Method
}

func newMethodChain() *methodChain {
	return &methodChain{disqualified: map[Method]bool{}, active: methodOrder[0]}
}

// next returns the first non-disqualified method at or after the current
// active one, or an error if every method has been disqualified.
func (c *methodChain) next() (Method, error) {
	for _, m := range methodOrder {
		if !c.disqualified[m] {
			c.active = m
			return m, nil
		}
	}
	return "", fmt.Errorf("no capture method available: all disqualified")
}

// disqualify permanently removes m from consideration.
func (c *methodChain) disqualify(m Method) {
	c.disqualified[m] = true
}
