package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// GrowCap returns the capacity a dense sequence should have after appending one element.
// Capacity doubles when full and never drops below 1.
func GrowCap(length, capacity int) int {
	if capacity < 1 {
		capacity = 1
	}
	for length+1 > capacity {
		capacity *= 2
	}
	return capacity
}

// ShrinkCap returns the capacity a dense sequence should have after a removal.
// Capacity halves while the live count is below half of it, never below 1.
func ShrinkCap(length, capacity int) int {
	for capacity > 1 && length < capacity/2 {
		capacity /= 2
	}
	return max(capacity, 1)
}
