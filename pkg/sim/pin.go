package sim

import (
	"sync/atomic"

	"github.com/golang/glog"
)

// Pin is a digital output. It implements assert.Indicator.
type Pin struct {
	Name string

	level   atomic.Bool
	toggles atomic.Uint64
}

// NewPin creates a low output.
func NewPin(name string) *Pin {
	return &Pin{Name: name}
}

// Toggle inverts the output level.
func (p *Pin) Toggle() {
	for {
		old := p.level.Load()
		if p.level.CompareAndSwap(old, !old) {
			p.toggles.Add(1)
			glog.V(2).Infof("pin %s: %v", p.Name, !old)
			return
		}
	}
}

// Set drives the output to level.
func (p *Pin) Set(level bool) {
	if p.level.Swap(level) != level {
		p.toggles.Add(1)
	}
}

// Level returns the output level.
func (p *Pin) Level() bool {
	return p.level.Load()
}

// Toggles counts level changes.
func (p *Pin) Toggles() uint64 {
	return p.toggles.Load()
}
