package store

import "container/heap"

// centroidCandidate is one entry under consideration for the nearest-k scan.
type centroidCandidate struct {
	districtID string
	distSq     float64
}

// maxHeap keeps the k smallest distances seen so far by exposing the
// largest at the root, so a new candidate only needs one comparison against
// the current worst kept entry.
type maxHeap []centroidCandidate

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].distSq != h[j].distSq {
		return h[i].distSq > h[j].distSq
	}
	// Deterministic tie-break: larger id "loses" so it surfaces at the
	// root first when distances are equal, keeping eviction order stable.
	return h[i].districtID > h[j].districtID
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)   { *h = append(*h, x.(centroidCandidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// nearestK returns the k candidates with the smallest distSq to (lng, lat),
// ordered ascending by distance and then by district id for determinism.
// seq calls yield once per (district id, centroid lng, centroid lat);
// it stops early if yield returns false, though nearestK never does that.
func nearestK(seq func(yield func(id string, lng, lat float64) bool), lng, lat float64, k int) []string {
	h := &maxHeap{}
	heap.Init(h)

	seq(func(id string, clng, clat float64) bool {
		dlng := clng - lng
		dlat := clat - lat
		distSq := dlng*dlng + dlat*dlat
		if h.Len() < k {
			heap.Push(h, centroidCandidate{districtID: id, distSq: distSq})
		} else if h.Len() > 0 && distSq < (*h)[0].distSq {
			heap.Pop(h)
			heap.Push(h, centroidCandidate{districtID: id, distSq: distSq})
		}
		return true
	})

	out := make([]centroidCandidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(centroidCandidate)
	}
	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.districtID
	}
	return ids
}
