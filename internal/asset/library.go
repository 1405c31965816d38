// Package asset resolves mesh addresses to loaded meshes, off the frame loop.
package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cogentcore.org/core/math32"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for addresses the loader does not know.
var ErrNotFound = errors.New("asset: not found")

// Mesh is a loaded mesh asset.
type Mesh struct {
	Address  string
	Bounds   math32.Box3
	Vertices int
}

// Loader fetches a mesh. Implementations may block and must honour ctx.
type Loader interface {
	Load(ctx context.Context, address string) (*Mesh, error)
}

// MeshEntry is one manifest record.
type MeshEntry struct {
	Address   string     `yaml:"address"`
	Min       [3]float32 `yaml:"min"`
	Max       [3]float32 `yaml:"max"`
	Vertices  int        `yaml:"vertices"`
	LatencyMS int        `yaml:"latency_ms"` // simulated fetch time
}

// Library is a Loader backed by a YAML manifest of known meshes.
type Library struct {
	meshes  map[string]*Mesh
	latency map[string]time.Duration
}

// LoadLibrary loads a mesh manifest. An empty path yields an empty library.
func LoadLibrary(path string) (*Library, error) {
	if path == "" {
		return NewLibrary(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh manifest: %w", err)
	}
	var file struct {
		Meshes []MeshEntry `yaml:"meshes"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse mesh manifest: %w", err)
	}
	return NewLibrary(file.Meshes), nil
}

func NewLibrary(entries []MeshEntry) *Library {
	l := &Library{
		meshes:  make(map[string]*Mesh, len(entries)),
		latency: make(map[string]time.Duration),
	}
	for _, e := range entries {
		l.meshes[e.Address] = &Mesh{
			Address:  e.Address,
			Bounds:   math32.Box3{Min: math32.Vec3(e.Min[0], e.Min[1], e.Min[2]), Max: math32.Vec3(e.Max[0], e.Max[1], e.Max[2])},
			Vertices: e.Vertices,
		}
		if e.LatencyMS > 0 {
			l.latency[e.Address] = time.Duration(e.LatencyMS) * time.Millisecond
		}
	}
	return l
}

// Count returns the number of meshes in the manifest.
func (l *Library) Count() int {
	return len(l.meshes)
}

func (l *Library) Load(ctx context.Context, address string) (*Mesh, error) {
	if d := l.latency[address]; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m, ok := l.meshes[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	cp := *m
	return &cp, nil
}
