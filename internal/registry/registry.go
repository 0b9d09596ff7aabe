// Package registry tracks the effects still running, at most one per state path.
package registry

import (
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"go.uber.org/zap"
)

const (
	table     = "ongoing"
	indexID   = "id"
	indexPath = "path"
)

type entry struct {
	ID      string
	PathKey string
	Handle  *effects.Handle
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			table: {
				Name: table,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexPath: {
						Name:    indexPath,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "PathKey"},
					},
				},
			},
		},
	}
}

// Registry is keyed twice: by handle id and by path. Path keys come from
// model.Path.Key, so paths only collide when they are equal.
type Registry struct {
	db     *memdb.MemDB
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create ongoing effects table: %w", err)
	}
	return &Registry{db: db, logger: logger}, nil
}

// Get returns the handle installed at p.
func (r *Registry) Get(p model.Path) (*effects.Handle, bool, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(table, indexPath, p.Key())
	if err != nil || raw == nil {
		return nil, false, err
	}
	return raw.(*entry).Handle, true, nil
}

// CancelAt cancels and removes the handle installed at p, if any.
func (r *Registry) CancelAt(p model.Path) (cancelled bool, err error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(table, indexPath, p.Key())
	if err != nil {
		return false, err
	} else if raw == nil {
		return false, nil
	}
	if err := txn.Delete(table, raw); err != nil {
		return false, err
	}
	txn.Commit()

	h := raw.(*entry).Handle
	h.Cancel()
	log.Emit(r.logger, log.LogDebug, "cancelled ongoing effect", map[string]interface{}{
		"path": p.String(),
		"kind": string(h.Kind),
		"id":   h.ID,
	})
	return true, nil
}

// Insert installs h at its path. A handle already at that path is cancelled first.
func (r *Registry) Insert(h *effects.Handle) error {
	if _, err := r.CancelAt(h.Path); err != nil {
		return err
	}

	txn := r.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(table, &entry{ID: h.ID, PathKey: h.Path.Key(), Handle: h}); err != nil {
		return fmt.Errorf("failed to register effect at %s: %w", h.Path, err)
	}
	txn.Commit()
	return nil
}

// Remove drops the handle with the given id without cancelling it.
func (r *Registry) Remove(id string) (removed bool, err error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(table, indexID, id)
	if err != nil {
		return false, err
	} else if raw == nil {
		return false, nil
	}
	if err := txn.Delete(table, raw); err != nil {
		return false, err
	}
	txn.Commit()
	return true, nil
}

// Handles lists the installed handles in path key order.
func (r *Registry) Handles() ([]*effects.Handle, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(table, indexPath)
	if err != nil {
		return nil, err
	}
	var out []*effects.Handle
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*entry).Handle)
	}
	return out, nil
}

// Len counts installed handles. Errors count as empty.
func (r *Registry) Len() int {
	handles, err := r.Handles()
	if err != nil {
		return 0
	}
	return len(handles)
}

// Prune removes handles that finished or were cancelled from the outside.
func (r *Registry) Prune() error {
	handles, err := r.Handles()
	if err != nil {
		return err
	}
	for _, h := range handles {
		if h.Cancelled() || h.Finished() {
			if _, err := r.Remove(h.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// CancelAll cancels every installed handle and empties the registry.
func (r *Registry) CancelAll() error {
	handles, err := r.Handles()
	if err != nil {
		return err
	}
	for _, h := range handles {
		if _, err := r.CancelAt(h.Path); err != nil {
			return err
		}
	}
	return nil
}
