package ecs

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. The generation bumps on destroy so stale handles held by
// decorators or in-flight loads are rejected instead of aliasing a new node.
type Handle uint64

func NewHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }
func (h Handle) IsZero() bool       { return h == 0 }

// Pool allocates handles with generational indices and a free list.
// Slot 0 generation 0 is never handed out so the zero Handle means "none".
type Pool struct {
	generations []uint32
	freeList    []uint32
	live        int
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 1, 1024), // slot 0 reserved
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *Pool) Create() Handle {
	p.live++
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewHandle(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 0)
	return NewHandle(idx, 0)
}

func (p *Pool) Alive(h Handle) bool {
	idx := h.Index()
	if idx == 0 || int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == h.Generation()
}

// Destroy invalidates h. Destroying a stale handle is a no-op and reports false.
func (p *Pool) Destroy(h Handle) bool {
	if !p.Alive(h) {
		return false
	}
	idx := h.Index()
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	p.live--
	return true
}

// Live is the number of handles currently alive.
func (p *Pool) Live() int { return p.live }
