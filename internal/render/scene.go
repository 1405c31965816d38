package render

import (
	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/core/ecs"
)

type link struct {
	name     string
	parent   Node
	children []Node
}

// Scene is an in-memory Graph backed by generational handles. Frame loop
// goroutine only.
type Scene struct {
	world      *ecs.World
	links      *ecs.Store[link]
	transforms *ecs.Store[Transform]
	prims      *ecs.Store[Primitive]
	root       Node
	camera     Camera
}

func NewScene() *Scene {
	s := &Scene{
		world:      ecs.NewWorld(),
		links:      ecs.NewStore[link](),
		transforms: ecs.NewStore[Transform](),
		prims:      ecs.NewStore[Primitive](),
	}
	s.world.Register(s.links)
	s.world.Register(s.transforms)
	s.world.Register(s.prims)
	s.root = s.create(0, "root")
	return s
}

func (s *Scene) create(parent Node, name string) Node {
	n := s.world.Create()
	s.links.Set(n, &link{name: name, parent: parent})
	t := Identity()
	s.transforms.Set(n, &t)
	if parent != 0 {
		s.links.Update(parent, func(l *link) { l.children = append(l.children, n) })
	}
	return n
}

func (s *Scene) Root() Node { return s.root }

func (s *Scene) AddGroup(parent Node, name string) (Node, error) {
	if !s.world.Alive(parent) {
		return 0, ErrStale
	}
	return s.create(parent, name), nil
}

func (s *Scene) AddPrimitive(parent Node, p Primitive) (Node, error) {
	if !s.world.Alive(parent) {
		return 0, ErrStale
	}
	n := s.create(parent, p.Kind.String())
	s.prims.Set(n, &p)
	return n, nil
}

func (s *Scene) UpdatePrimitive(n Node, fn func(p *Primitive)) error {
	if !s.world.Alive(n) || !s.prims.Update(n, fn) {
		return ErrStale
	}
	return nil
}

func (s *Scene) Primitive(n Node) (Primitive, bool) {
	p, ok := s.prims.Get(n)
	if !ok {
		return Primitive{}, false
	}
	return *p, true
}

func (s *Scene) SetTransform(n Node, t Transform) error {
	if !s.world.Alive(n) {
		return ErrStale
	}
	s.transforms.Set(n, &t)
	return nil
}

func (s *Scene) Transform(n Node) (Transform, bool) {
	t, ok := s.transforms.Get(n)
	if !ok {
		return Transform{}, false
	}
	return *t, true
}

// WorldPosition sums positions up the parent chain. Parent rotation and
// scale are not applied.
func (s *Scene) WorldPosition(n Node) (math32.Vector3, bool) {
	if !s.world.Alive(n) {
		return math32.Vector3{}, false
	}
	var pos math32.Vector3
	for cur := n; cur != 0; {
		t, _ := s.transforms.Get(cur)
		pos = pos.Add(t.Position)
		l, _ := s.links.Get(cur)
		cur = l.parent
	}
	return pos, true
}

// Remove detaches n and destroys its subtree. Returns how many nodes went
// away; the root cannot be removed.
func (s *Scene) Remove(n Node) int {
	if n == s.root || !s.world.Alive(n) {
		return 0
	}
	l, _ := s.links.Get(n)
	s.links.Update(l.parent, func(p *link) {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	})
	return s.destroy(n)
}

func (s *Scene) destroy(n Node) int {
	removed := 0
	if l, ok := s.links.Get(n); ok {
		for _, c := range l.children {
			removed += s.destroy(c)
		}
	}
	if s.world.Destroy(n) {
		removed++
	}
	return removed
}

func (s *Scene) Alive(n Node) bool { return s.world.Alive(n) }

func (s *Scene) Camera() Camera { return s.camera }

func (s *Scene) SetCamera(c Camera) { s.camera = c }

// Children returns n's direct children in insertion order.
func (s *Scene) Children(n Node) []Node {
	l, ok := s.links.Get(n)
	if !ok {
		return nil
	}
	return append([]Node(nil), l.children...)
}

// Name returns the label a node was created with.
func (s *Scene) Name(n Node) string {
	l, ok := s.links.Get(n)
	if !ok {
		return ""
	}
	return l.name
}

// Count is the number of live primitives of kind k.
func (s *Scene) Count(k Kind) int {
	count := 0
	ecs.Each2(s.prims, s.links, func(_ ecs.Handle, p *Primitive, _ *link) {
		if p.Kind == k {
			count++
		}
	})
	return count
}

// Len is the number of live nodes including the root.
func (s *Scene) Len() int { return s.world.Live() }
