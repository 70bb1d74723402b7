package discover

import "container/heap"

// URL priority classes. Lower is served first.
const (
	PrioritySeed     = 0
	PriorityInternal = 1
	PriorityExternal = 2
	PriorityKnown    = 3 // inferred from previously stored backlinks
)

type frontierItem struct {
	url      string
	priority int
	depth    int
	seq      int64 // insertion order, breaks priority ties
}

// frontier is a min-heap of URLs ordered by (priority, insertion order).
// Not safe for concurrent use; the coordinator owns it.
type frontier struct {
	items []*frontierItem
	seq   int64
}

func newFrontier() *frontier {
	f := &frontier{}
	heap.Init(f)
	return f
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	if f.items[i].priority != f.items[j].priority {
		return f.items[i].priority < f.items[j].priority
	}
	return f.items[i].seq < f.items[j].seq
}

func (f *frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }

func (f *frontier) Push(x any) { f.items = append(f.items, x.(*frontierItem)) }

func (f *frontier) Pop() any {
	old := f.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	f.items = old[:n-1]
	return item
}

// add enqueues a URL.
func (f *frontier) add(url string, priority, depth int) {
	f.seq++
	heap.Push(f, &frontierItem{url: url, priority: priority, depth: depth, seq: f.seq})
}

// next dequeues the best URL, nil when empty.
func (f *frontier) next() *frontierItem {
	if len(f.items) == 0 {
		return nil
	}
	return heap.Pop(f).(*frontierItem)
}
