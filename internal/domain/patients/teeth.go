package patients

// PermanentTeeth returns the 32 FDI tooth numbers in chart order:
// upper right, upper left, lower right, lower left.
func PermanentTeeth() []int {
	out := make([]int, 0, 32)
	for _, q := range []struct{ quadrant, from, step int }{
		{1, 8, -1},
		{2, 1, 1},
		{4, 8, -1},
		{3, 1, 1},
	} {
		for i, n := 0, q.from; i < 8; i, n = i+1, n+q.step {
			out = append(out, q.quadrant*10+n)
		}
	}
	return out
}

// ValidTooth reports whether n is a permanent tooth in FDI notation.
func ValidTooth(n int) bool {
	q, t := n/10, n%10
	return q >= 1 && q <= 4 && t >= 1 && t <= 8
}
