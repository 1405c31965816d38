package event

import "github.com/KallynGowdy/aux-sub000/internal/tag"

// Entity change stream events emitted by the watcher.

type EntitiesDiscovered struct {
	Entities []*tag.Entity
}

type EntitiesUpdated struct {
	Entities []*tag.Entity
}

type EntitiesRemoved struct {
	IDs []string
}
