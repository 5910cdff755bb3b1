package ntpd

import "time"

// Clock abstracts the wall-clock source so tests can freeze time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
