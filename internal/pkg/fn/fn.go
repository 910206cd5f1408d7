package fn

// Map applies selector to every item. The result is never nil, so an empty input encodes
// as an empty JSON array.
func Map[T any, V any](items []T, selector func(T) V) []V {
	results := make([]V, 0, len(items))
	for _, item := range items {
		results = append(results, selector(item))
	}
	return results
}

// Set returns the distinct items in first-seen order.
func Set[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	results := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		results = append(results, item)
	}
	return results
}
