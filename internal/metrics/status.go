package metrics

import "sort"

// ErrorBucket is the aggregated count for one error class.
type ErrorBucket struct {
	Class string
	Count int64
}

// FlattenErrorBuckets converts a class->count map into rows sorted by
// descending count, then by class name for stability.
func FlattenErrorBuckets(buckets map[string]int64) []ErrorBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0, len(buckets))
	for class, count := range buckets {
		rows = append(rows, ErrorBucket{Class: class, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Class < rows[j].Class
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// MergeErrorBuckets sums several breakdowns into a new map.
func MergeErrorBuckets(all ...map[string]int64) map[string]int64 {
	var out map[string]int64
	for _, m := range all {
		for k, v := range m {
			if out == nil {
				out = make(map[string]int64)
			}
			out[k] += v
		}
	}
	return out
}
