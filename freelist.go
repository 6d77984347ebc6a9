package tlbtree

// 空闲块按对齐后的大小分桶, 同桶内按偏移维护小根堆, 低地址优先复用,
// 让池的热端尽量紧凑. freelist整个是易失的, 崩溃后丢掉的只是复用机会

type blockFreelist struct {
	buckets map[uint64]*relHeap
}

func newBlockFreelist() *blockFreelist {
	return &blockFreelist{
		buckets: make(map[uint64]*relHeap),
	}
}

func (f *blockFreelist) put(rel RelPtr, size uint64) {
	h, ok := f.buckets[size]
	if !ok {
		h = new(relHeap)
		f.buckets[size] = h
	}
	h.push(rel)
}

func (f *blockFreelist) take(size uint64) (RelPtr, bool) {
	h, ok := f.buckets[size]
	if !ok || len(h.data) == 0 {
		return 0, false
	}
	return h.pop(), true
}

type relHeap struct {
	data []RelPtr
}

func (h *relHeap) push(v RelPtr) {
	h.data = append(h.data, v)
	cur := len(h.data) - 1
	for cur > 0 {
		parent := (cur - 1) / 2
		if h.data[cur] >= h.data[parent] {
			break
		}
		h.data[cur], h.data[parent] = h.data[parent], h.data[cur]
		cur = parent
	}
}

func (h *relHeap) pop() RelPtr {
	top := h.data[0]
	last := len(h.data) - 1
	h.data[0] = h.data[last]
	h.data = h.data[:last]
	idx := 0
	for {
		left := idx*2 + 1
		right := idx*2 + 2
		small := idx
		if left < len(h.data) && h.data[left] < h.data[small] {
			small = left
		}
		if right < len(h.data) && h.data[right] < h.data[small] {
			small = right
		}
		if small == idx {
			break
		}
		h.data[idx], h.data[small] = h.data[small], h.data[idx]
		idx = small
	}
	return top
}
