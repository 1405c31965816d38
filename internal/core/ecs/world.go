package ecs

// World owns the handle pool and every registered component store.
// Destruction is immediate: a destroyed handle has no components left.
type World struct {
	pool   *Pool
	stores []Removable
}

func NewWorld() *World {
	return &World{
		pool:   NewPool(),
		stores: make([]Removable, 0, 8),
	}
}

// Register adds a component store purged on Destroy.
func (w *World) Register(store Removable) {
	w.stores = append(w.stores, store)
}

func (w *World) Create() Handle {
	return w.pool.Create()
}

func (w *World) Alive(h Handle) bool {
	return w.pool.Alive(h)
}

// Destroy clears h from every store and invalidates it.
func (w *World) Destroy(h Handle) bool {
	if !w.pool.Alive(h) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(h)
	}
	return w.pool.Destroy(h)
}

func (w *World) Live() int { return w.pool.Live() }
