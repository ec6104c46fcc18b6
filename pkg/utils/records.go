package utils

// Chunks splits items into successive slices of at most size elements.
// A non-positive size yields a single chunk. The chunks share items' backing array.
func Chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// FilterRecord returns a copy of record holding only the given keys, or,
// when exclude is set, every key except them.
func FilterRecord(record map[string]any, keys []string, exclude bool) map[string]any {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	out := make(map[string]any, len(record))
	for k, v := range record {
		if _, ok := set[k]; ok != exclude {
			out[k] = v
		}
	}
	return out
}

// ToAnySlice converts records to []any, the shape the Bolt packer expects for list parameters.
func ToAnySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
