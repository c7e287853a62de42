package testutil

import "time"

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// StepClock returns a time that advances by a fixed step on every call, so
// consecutive artifacts get distinct timestamped names.
type StepClock struct {
	t    time.Time
	step time.Duration
}

func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{t: start, step: step}
}

func (c *StepClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// SequenceIDGenerator yields deterministic IDs: id-0001, id-0002, ...
type SequenceIDGenerator struct {
	n int
}

func (g *SequenceIDGenerator) New() string {
	g.n++
	return "id-" + itoa4(g.n)
}

func itoa4(n int) string {
	digits := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
