package segment

// Range is an inclusive interval of unit indices denoting one output segment.
// Across a run the range list is always contiguous, ascending, and covers
// every unit exactly once.
type Range struct {
	Start int
	End   int
}

// buildRanges materialises boundary indices into an ordered range list over n
// units. Boundary b closes the current range at unit b and opens the next at
// unit b+1; the final range extends to the last unit.
func buildRanges(boundaries []int, n int) []Range {
	ranges := make([]Range, 0, len(boundaries)+1)
	start := 0
	for _, b := range boundaries {
		ranges = append(ranges, Range{Start: start, End: b})
		start = b + 1
	}
	ranges = append(ranges, Range{Start: start, End: n - 1})
	return ranges
}

// enforceMinWords merges undersized ranges into neighbours until every range
// holds at least minWords words or a single range remains. An undersized
// range is absorbed by its predecessor when one exists (growing earlier
// context), else by its successor. After a merge the scan resumes at the
// merged position, so cascades of tiny ranges collapse correctly.
//
// Each merge removes exactly one range, so the loop terminates with the list
// still contiguous and covering all units.
func enforceMinWords(units []string, ranges []Range, minWords int) []Range {
	rangeWords := func(r Range) int {
		total := 0
		for i := r.Start; i <= r.End; i++ {
			total += wordCount(units[i])
		}
		return total
	}

	i := 0
	for i < len(ranges) {
		if rangeWords(ranges[i]) >= minWords {
			i++
			continue
		}
		switch {
		case i > 0:
			ranges[i-1].End = ranges[i].End
			ranges = append(ranges[:i], ranges[i+1:]...)
			i--
		case i+1 < len(ranges):
			ranges[i].End = ranges[i+1].End
			ranges = append(ranges[:i+1], ranges[i+2:]...)
		default:
			// Single undersized range, nothing to merge with.
			i++
		}
	}
	return ranges
}
