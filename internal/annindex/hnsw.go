package annindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// node is a single point in the HNSW graph. id is an internal string handle
// (not exposed outside the package); Key is the caller-visible row ordinal.
// Because an index is opened with multi=true, several nodes may share the
// same Key (e.g. one row embedded more than once across a re-index).
type node struct {
	ID        string
	Key       uint64
	Vector    []float32
	Level     int
	Neighbors [][]string
	Deleted   bool
}

// graph is the HNSW construction and search machinery, lifted from a
// string-keyed implementation and adapted to carry a uint64 row key per
// node so multiple nodes can resolve to the same row.
type graph struct {
	M              int
	MaxM           int
	EfConstruction int
	ML             float64

	Nodes      map[string]*node
	EntryPoint string

	distFunc func(a, b []float32) float32

	mu  sync.RWMutex
	rng *rand.Rand
}

func newGraph(m, efConstruction int, distFunc func(a, b []float32) float32, seed int64) *graph {
	return &graph{
		M:              m,
		MaxM:           m * 2,
		EfConstruction: efConstruction,
		ML:             1.0 / math.Log(2.0),
		Nodes:          make(map[string]*node),
		distFunc:       distFunc,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

func (g *graph) selectLevel() int {
	level := 0
	for g.rng.Float64() < 0.5 {
		level++
		if level > 16 {
			break
		}
	}
	return level
}

// insert adds a single vector under internal id, tagged with the caller's
// row key. Not safe for concurrent calls with other inserts; callers that
// want parallel insert must serialize graph mutation with a mutex of their
// own (see Index.Add).
func (g *graph) insert(id string, key uint64, vector []float32) {
	level := g.selectLevel()
	n := &node{
		ID:        id,
		Key:       key,
		Vector:    vector,
		Level:     level,
		Neighbors: make([][]string, level+1),
	}
	for i := 0; i <= level; i++ {
		n.Neighbors[i] = make([]string, 0)
	}
	g.Nodes[id] = n

	if g.EntryPoint == "" {
		g.EntryPoint = id
		return
	}

	currNearest := []string{g.EntryPoint}
	entryNode := g.Nodes[g.EntryPoint]
	for lc := entryNode.Level; lc > level; lc-- {
		currNearest = g.searchLayerClosest(vector, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		m := g.M
		if lc == 0 {
			m = g.MaxM
		}

		candidates := g.searchLayer(vector, currNearest, g.EfConstruction, lc)
		neighbors := g.selectNeighborsHeuristic(vector, candidates, m)

		n.Neighbors[lc] = neighbors
		for _, neighbor := range neighbors {
			g.addConnection(neighbor, id, lc)

			neighborNode := g.Nodes[neighbor]
			maxConn := g.M
			if lc == 0 {
				maxConn = g.MaxM
			}
			if lc < len(neighborNode.Neighbors) && len(neighborNode.Neighbors[lc]) > maxConn {
				pruned := g.selectNeighborsHeuristic(neighborNode.Vector, neighborNode.Neighbors[lc], maxConn)
				neighborNode.Neighbors[lc] = pruned
			}
		}

		currNearest = neighbors
	}

	if level > g.Nodes[g.EntryPoint].Level {
		g.EntryPoint = id
	}
}

func (g *graph) searchLayer(query []float32, entryPoints []string, ef int, layer int) []string {
	visited := make(map[string]bool)
	candidates := &distHeap{}
	dynamicList := &distHeap{}

	for _, point := range entryPoints {
		dist := g.distFunc(query, g.Nodes[point].Vector)
		heap.Push(candidates, &heapItem{id: point, dist: dist})
		heap.Push(dynamicList, &heapItem{id: point, dist: -dist})
		visited[point] = true
	}

	for candidates.Len() > 0 {
		if dynamicList.Len() > 0 {
			lowerBound := (*candidates)[0].dist
			if lowerBound > -(*dynamicList)[0].dist {
				break
			}
		}

		current := heap.Pop(candidates).(*heapItem)
		currentNode := g.Nodes[current.id]

		if layer >= len(currentNode.Neighbors) {
			continue
		}

		for _, neighbor := range currentNode.Neighbors[layer] {
			if !visited[neighbor] {
				visited[neighbor] = true
				dist := g.distFunc(query, g.Nodes[neighbor].Vector)

				if dynamicList.Len() < ef || dist < -(*dynamicList)[0].dist {
					heap.Push(candidates, &heapItem{id: neighbor, dist: dist})
					heap.Push(dynamicList, &heapItem{id: neighbor, dist: -dist})
					if dynamicList.Len() > ef {
						heap.Pop(dynamicList)
					}
				}
			}
		}
	}

	result := make([]string, 0, dynamicList.Len())
	for dynamicList.Len() > 0 {
		item := heap.Pop(dynamicList).(*heapItem)
		result = append(result, item.id)
	}
	for i := 0; i < len(result)/2; i++ {
		result[i], result[len(result)-1-i] = result[len(result)-1-i], result[i]
	}
	return result
}

func (g *graph) searchLayerClosest(query []float32, entryPoints []string, num, layer int) []string {
	candidates := g.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

func (g *graph) selectNeighborsHeuristic(query []float32, candidates []string, m int) []string {
	if len(candidates) <= m {
		return candidates
	}

	type distPair struct {
		id   string
		dist float32
	}
	pairs := make([]distPair, len(candidates))
	for i, candidate := range candidates {
		pairs[i] = distPair{id: candidate, dist: g.distFunc(query, g.Nodes[candidate].Vector)}
	}
	for i := 0; i < len(pairs)-1; i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	result := make([]string, 0, m)
	for i := 0; i < m && i < len(pairs); i++ {
		result = append(result, pairs[i].id)
	}
	return result
}

func (g *graph) addConnection(from, to string, layer int) {
	fromNode, exists := g.Nodes[from]
	if !exists || layer >= len(fromNode.Neighbors) {
		return
	}
	for _, neighbor := range fromNode.Neighbors[layer] {
		if neighbor == to {
			return
		}
	}
	fromNode.Neighbors[layer] = append(fromNode.Neighbors[layer], to)
}

// search runs top-down entry-point descent then an ef-width search at layer
// zero, returning the internal node ids in ascending distance order.
func (g *graph) search(query []float32, k, ef int) []string {
	if g.EntryPoint == "" {
		return nil
	}

	entryNode := g.Nodes[g.EntryPoint]
	currNearest := []string{g.EntryPoint}
	for layer := entryNode.Level; layer > 0; layer-- {
		currNearest = g.searchLayerClosest(query, currNearest, 1, layer)
	}

	candidates := g.searchLayer(query, currNearest, ef, 0)

	type result struct {
		id   string
		dist float32
	}
	results := make([]result, 0, len(candidates))
	for _, candidate := range candidates {
		n, ok := g.Nodes[candidate]
		if ok && !n.Deleted {
			results = append(results, result{id: candidate, dist: g.distFunc(query, n.Vector)})
		}
	}
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].dist < results[i].dist {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	if k > len(results) {
		k = len(results)
	}
	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = results[i].id
	}
	return ids
}

func (g *graph) distance(query []float32, id string) float32 {
	return g.distFunc(query, g.Nodes[id].Vector)
}

func (g *graph) delete(id string) error {
	n, exists := g.Nodes[id]
	if !exists {
		return fmt.Errorf("annindex: node %q not found", id)
	}
	n.Deleted = true
	if g.EntryPoint == id {
		g.EntryPoint = ""
		for nodeID, other := range g.Nodes {
			if !other.Deleted {
				g.EntryPoint = nodeID
				break
			}
		}
	}
	return nil
}

func (g *graph) size() int {
	count := 0
	for _, n := range g.Nodes {
		if !n.Deleted {
			count++
		}
	}
	return count
}

type heapItem struct {
	id   string
	dist float32
}

type distHeap []*heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}
