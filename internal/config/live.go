package config

import "sync/atomic"

// Live is a concurrency-safe holder for the current Dynamic settings.
type Live struct {
	v atomic.Pointer[Dynamic]
}

func NewLive(d Dynamic) *Live {
	l := &Live{}
	l.Set(d)
	return l
}

func (l *Live) Get() Dynamic {
	if p := l.v.Load(); p != nil {
		return *p
	}
	return Dynamic{}
}

func (l *Live) Set(d Dynamic) {
	l.v.Store(&d)
}
