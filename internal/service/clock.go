package service

import "time"

// Clock is the injectable time source. Services never call time.Now
// directly, so tests can pin the clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }
