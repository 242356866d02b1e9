package importer

import "time"

// ChunkInterval separates consecutive posts of one thread.
const ChunkInterval = time.Second

// BaseTime converts an export timestamp to a UTC instant with no fractional
// seconds.
func BaseTime(epochSeconds int64) time.Time {
	return time.Unix(epochSeconds, 0).UTC()
}

// Sequence returns n strictly increasing creation times starting at base,
// so a feed sorted by creation time shows the thread in order.
func Sequence(base time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	times := make([]time.Time, n)
	times[0] = base
	for i := 1; i < n; i++ {
		times[i] = times[i-1].Add(ChunkInterval)
	}
	return times
}
