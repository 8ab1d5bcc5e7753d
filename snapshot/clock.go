package snapshot

import "time"

// systemClock is the wall clock used outside tests
type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (systemClock) Now() time.Time { return time.Now().UTC() }
