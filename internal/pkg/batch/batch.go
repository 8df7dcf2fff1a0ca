package batch

// Split partitions items into consecutive batches of at most size elements.
// Order is preserved, the last batch may be shorter.
// size < 1 is a programming error
func Split[T any](items []T, size int) [][]T {
	if size < 1 {
		panic("batch: size < 1")
	}
	if len(items) == 0 {
		return nil
	}
	res := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, res = items[size:], append(res, items[:size:size])
	}
	return append(res, items)
}
