package feature

// Delta computes regression coefficients over a ±window frame context:
// d[t] = Σ_{n=1..N} n·(c[t+n] − c[t−n]) / (2·Σ n²). Edge frames are
// replicated.
func Delta(frames [][]float64, window int) [][]float64 {
	T := len(frames)
	if T == 0 {
		return nil
	}
	dim := len(frames[0])

	norm := 0.0
	for n := 1; n <= window; n++ {
		norm += float64(n * n)
	}
	norm *= 2

	clamp := func(t int) int {
		return max(0, min(T-1, t))
	}

	out := make([][]float64, T)
	buf := make([]float64, T*dim)
	for t := range frames {
		row := buf[t*dim : (t+1)*dim]
		for n := 1; n <= window; n++ {
			next := frames[clamp(t+n)]
			prev := frames[clamp(t-n)]
			w := float64(n)
			for d := range row {
				row[d] += w * (next[d] - prev[d])
			}
		}
		for d := range row {
			row[d] /= norm
		}
		out[t] = row
	}
	return out
}

// AppendDeltas returns frames extended with Δ and ΔΔ columns: [T][D] → [T][3D].
func AppendDeltas(frames [][]float64, window int) [][]float64 {
	if len(frames) == 0 {
		return nil
	}
	d1 := Delta(frames, window)
	d2 := Delta(d1, window)

	dim := len(frames[0])
	out := make([][]float64, len(frames))
	buf := make([]float64, len(frames)*dim*3)
	for t := range frames {
		row := buf[t*dim*3 : (t+1)*dim*3]
		copy(row, frames[t])
		copy(row[dim:], d1[t])
		copy(row[2*dim:], d2[t])
		out[t] = row
	}
	return out
}
