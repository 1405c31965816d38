// Package render is the attach point to the 3D engine. The scene layer only
// talks to Graph; Scene is the in-memory implementation used by the headless
// process and the tests.
package render

import (
	"errors"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/core/ecs"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrStale is returned for operations on removed or never-issued nodes.
var ErrStale = errors.New("render: stale node")

// Node identifies a group or primitive in the graph. The zero Node is never valid.
type Node = ecs.Handle

// Kind enumerates the primitives decorators may request.
type Kind uint8

const (
	KindBox Kind = iota + 1
	KindSphere
	KindPlane
	KindMesh
	KindIframe
	KindText
	KindBar
	KindLine
)

var kindNames = map[Kind]string{
	KindBox:    "box",
	KindSphere: "sphere",
	KindPlane:  "plane",
	KindMesh:   "mesh",
	KindIframe: "iframe",
	KindText:   "text",
	KindBar:    "bar",
	KindLine:   "line",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Transform is a node's local placement. Rotation is Euler degrees.
type Transform struct {
	Position math32.Vector3
	Rotation math32.Vector3
	Scale    math32.Vector3
}

// Identity is the transform new nodes start with.
func Identity() Transform {
	return Transform{Scale: math32.Vec3(1, 1, 1)}
}

// Primitive is a renderable resource; the engine owns its geometry/material.
type Primitive struct {
	Kind    Kind
	Address string      // mesh asset or embedded content URL
	Bounds  math32.Box3 // local bounding box
	Text    string
	Size    float32 // text size or bar fill fraction
	Points  []math32.Vector3
	Color   colorful.Color
	Back    colorful.Color // bar background
	Visible bool
}

// Camera is the viewer billboards face.
type Camera struct {
	Position math32.Vector3
}

// Graph is the scene graph collaborator. Removing a node removes its whole
// subtree and releases every primitive in it.
type Graph interface {
	Root() Node
	AddGroup(parent Node, name string) (Node, error)
	AddPrimitive(parent Node, p Primitive) (Node, error)
	UpdatePrimitive(n Node, fn func(p *Primitive)) error
	Primitive(n Node) (Primitive, bool)
	SetTransform(n Node, t Transform) error
	Transform(n Node) (Transform, bool)
	WorldPosition(n Node) (math32.Vector3, bool)
	Remove(n Node) int
	Alive(n Node) bool
	Camera() Camera
}
