package watch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// ErrBadBatch marks a change batch that cannot be applied.
var ErrBadBatch = errors.New("watch: bad batch")

// Op is the kind of change a Batch carries.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Batch is one externally supplied change: entities for add/update, IDs for remove.
type Batch struct {
	Op       Op            `json:"op"`
	Entities []*tag.Entity `json:"entities,omitempty"`
	IDs      []string      `json:"ids,omitempty"`
}

// Validate checks the batch is well formed.
func (b Batch) Validate() error {
	switch b.Op {
	case OpAdd, OpUpdate:
		if len(b.Entities) == 0 {
			return fmt.Errorf("%w: %s without entities", ErrBadBatch, b.Op)
		}
		for _, e := range b.Entities {
			if e == nil {
				return fmt.Errorf("%w: null entity", ErrBadBatch)
			}
		}
	case OpRemove:
		if len(b.IDs) == 0 {
			return fmt.Errorf("%w: remove without ids", ErrBadBatch)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrBadBatch, b.Op)
	}
	return nil
}

// DecodeBatch parses and validates a JSON batch.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrBadBatch, err)
	}
	if err := b.Validate(); err != nil {
		return Batch{}, err
	}
	return b, nil
}
