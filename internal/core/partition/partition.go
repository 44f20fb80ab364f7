package partition

// AssignedRange is the contiguous slice of the cube's ordered fragment list
// owned by one worker. Count == 0 is an idle worker.
type AssignedRange struct {
	Start int
	Count int
}

// Empty reports whether the worker owns no fragments.
func (r AssignedRange) Empty() bool { return r.Count == 0 }

// End is the exclusive end ordinal of the range.
func (r AssignedRange) End() int { return r.Start + r.Count }

// Contains reports whether fragment ordinal i belongs to the range.
func (r AssignedRange) Contains(i int) bool { return i >= r.Start && i < r.End() }

// For returns the fragments owned by workerRank out of totalFragments spread
// over workerCount workers. The first total%workers ranks get one extra
// fragment. Stable and deterministic: the result depends only on the three
// arguments, so every rank computes every other rank's share without talking
// to it.
func For(totalFragments, workerCount, workerRank int) AssignedRange {
	if totalFragments <= 0 || workerCount <= 0 || workerRank < 0 || workerRank >= workerCount {
		return AssignedRange{Start: max(totalFragments, 0)}
	}
	base := totalFragments / workerCount
	remainder := totalFragments % workerCount

	count := base
	if workerRank < remainder {
		count++
	}
	start := workerRank*base + min(workerRank, remainder)

	if count == 0 || start >= totalFragments {
		return AssignedRange{Start: totalFragments}
	}
	return AssignedRange{Start: start, Count: count}
}
