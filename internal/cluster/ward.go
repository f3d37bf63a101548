package cluster

import "math"

// merge records a single merge step in the dendrogram. Ids below the
// number of points are points; merge i creates cluster n+i.
type merge struct {
	a, b     int
	distance float64 // Euclidean, not squared
	size     int
}

func squaredDistance(p, q []float64) float64 {
	var d float64
	for k := range p {
		diff := p[k] - q[k]
		d += diff * diff
	}
	return d
}

// wardLinkage performs Ward's agglomerative clustering using the
// Lance-Williams recurrence and returns the n-1 merges in order.
func wardLinkage(points [][]float64) []merge {
	n := len(points)
	if n < 2 {
		return nil
	}

	total := 2*n - 1
	d := make([][]float64, total) // squared distances between live clusters
	for i := range d {
		d[i] = make([]float64, total)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := squaredDistance(points[i], points[j])
			d[i][j], d[j][i] = v, v
		}
	}

	size := make([]int, total)
	active := make([]bool, total)
	for i := 0; i < n; i++ {
		size[i] = 1
		active[i] = true
	}

	merges := make([]merge, 0, n-1)
	for step := 0; step < n-1; step++ {
		id := n + step

		a, b, best := -1, -1, math.Inf(1)
		for i := 0; i < id; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < id; j++ {
				if active[j] && d[i][j] < best {
					a, b, best = i, j, d[i][j]
				}
			}
		}

		active[a], active[b] = false, false
		size[id] = size[a] + size[b]

		// d(new, k) = ((n_k+n_a)d(a,k) + (n_k+n_b)d(b,k) - n_k d(a,b)) / (n_k+n_a+n_b)
		na, nb := float64(size[a]), float64(size[b])
		for k := 0; k < id; k++ {
			if !active[k] {
				continue
			}
			nk := float64(size[k])
			v := ((nk+na)*d[a][k] + (nk+nb)*d[b][k] - nk*best) / (nk + na + nb)
			d[id][k], d[k][id] = v, v
		}
		active[id] = true

		merges = append(merges, merge{a: a, b: b, distance: math.Sqrt(best), size: size[id]})
	}
	return merges
}

// cutDendrogram labels each point by the clusters formed by merges at or
// below threshold. Labels are sequential in order of first appearance.
func cutDendrogram(merges []merge, n int, threshold float64) []int {
	parent := make([]int, n+len(merges))
	for i := range parent {
		parent[i] = i
	}
	for step, m := range merges {
		if m.distance > threshold {
			continue
		}
		id := n + step
		parent[find(parent, m.a)] = id
		parent[find(parent, m.b)] = id
	}

	labels := make([]int, n)
	ids := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(parent, i)
		if _, ok := ids[root]; !ok {
			ids[root] = len(ids)
		}
		labels[i] = ids[root]
	}
	return labels
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}
