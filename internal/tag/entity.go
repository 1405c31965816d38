package tag

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Entity is an immutable snapshot of one bot: a stable ID and its tags.
// Updates replace the snapshot wholesale; nothing mutates an Entity in place.
type Entity struct {
	id   string
	tags map[string]Value
}

// New copies tags into a new snapshot. Null values are dropped.
func New(id string, tags map[string]Value) *Entity {
	e := &Entity{id: id, tags: make(map[string]Value, len(tags))}
	for k, v := range tags {
		if v.IsNull() {
			continue
		}
		e.tags[k] = v
	}
	return e
}

// FromMap builds a snapshot from decoded JSON/YAML tag data.
func FromMap(id string, raw map[string]any) *Entity {
	e := &Entity{id: id, tags: make(map[string]Value, len(raw))}
	for k, v := range raw {
		tv := FromAny(v)
		if tv.IsNull() {
			continue
		}
		e.tags[k] = tv
	}
	return e
}

func (e *Entity) ID() string { return e.id }

// Tag returns the raw (uncomputed) tag value, Null when absent.
func (e *Entity) Tag(name string) Value {
	return e.tags[name]
}

func (e *Entity) Has(name string) bool {
	_, ok := e.tags[name]
	return ok
}

func (e *Entity) Len() int { return len(e.tags) }

// Names returns the tag names in sorted order.
func (e *Entity) Names() []string {
	names := make([]string, 0, len(e.tags))
	for k := range e.tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Each calls fn for every tag in name order.
func (e *Entity) Each(fn func(name string, v Value)) {
	for _, k := range e.Names() {
		fn(k, e.tags[k])
	}
}

// With returns a new snapshot with name set to v. A Null v removes the tag.
func (e *Entity) With(name string, v Value) *Entity {
	next := &Entity{id: e.id, tags: make(map[string]Value, len(e.tags)+1)}
	for k, old := range e.tags {
		next.tags[k] = old
	}
	if v.IsNull() {
		delete(next.tags, name)
	} else {
		next.tags[name] = v
	}
	return next
}

// Without returns a new snapshot without the named tags.
func (e *Entity) Without(names ...string) *Entity {
	next := &Entity{id: e.id, tags: make(map[string]Value, len(e.tags))}
	for k, v := range e.tags {
		next.tags[k] = v
	}
	for _, n := range names {
		delete(next.tags, n)
	}
	return next
}

// Raw converts the tags back into plain Go data.
func (e *Entity) Raw() map[string]any {
	out := make(map[string]any, len(e.tags))
	for k, v := range e.tags {
		out[k] = v.Any()
	}
	return out
}

// ChangedTags returns the sorted names whose values differ between old and next.
// A nil old snapshot means every tag of next changed.
func ChangedTags(old, next *Entity) []string {
	var changed []string
	switch {
	case old == nil && next == nil:
		return nil
	case old == nil:
		return next.Names()
	case next == nil:
		return old.Names()
	}
	for k, v := range next.tags {
		if ov, ok := old.tags[k]; !ok || !ov.Equal(v) {
			changed = append(changed, k)
		}
	}
	for k := range old.tags {
		if _, ok := next.tags[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

type entityJSON struct {
	ID   string           `json:"id"`
	Tags map[string]Value `json:"tags"`
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityJSON{ID: e.id, Tags: e.tags})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("entity: %w", err)
	}
	if raw.ID == "" {
		return fmt.Errorf("entity: missing id")
	}
	*e = *New(raw.ID, raw.Tags)
	return nil
}

// SortByID sorts entities by ascending ID in place.
func SortByID(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].id < entities[j].id })
}
