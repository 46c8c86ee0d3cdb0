package processor

import "sync/atomic"

// Counters is the run-wide tally. Workers share one instance by pointer;
// every field is atomic so concurrent increments never lose updates.
type Counters struct {
	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64
}

func (c *Counters) recordSkip() {
	c.skipped.Add(1)
}

func (c *Counters) recordFailure() {
	c.processed.Add(1)
	c.failed.Add(1)
}

func (c *Counters) recordConversion(bytesIn, bytesOut int64) {
	c.processed.Add(1)
	c.bytesIn.Add(bytesIn)
	c.bytesOut.Add(bytesOut)
}

// fill copies the tallies into s. Call only after the join barrier.
func (c *Counters) fill(s *Summary) {
	s.Processed = int(c.processed.Load())
	s.Skipped = int(c.skipped.Load())
	s.Failed = int(c.failed.Load())
	s.BytesIn = c.bytesIn.Load()
	s.BytesOut = c.bytesOut.Load()
}
