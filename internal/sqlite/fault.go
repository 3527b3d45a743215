package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// executeFaultRequest loads every fault in req. Faults whose row is missing
// are returned; the others are populated in place.
func (s *Store) executeFaultRequest(c *conn, req *larder.FaultRequest) ([]*larder.ManagedObject, error) {
	var failed []*larder.ManagedObject
	for _, f := range req.Faults() {
		ok, err := s.loadFault(c, req.Context(), f)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Warnw("fault row missing", "store", s.id, "entity", f.Entity().Name(), "objectID", f.ObjectID())
			failed = append(failed, f)
		}
	}
	return failed, nil
}

func (s *Store) loadFault(c *conn, ctx *larder.Context, f *larder.ManagedObject) (bool, error) {
	e := f.Entity()
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quote(e.Plural()), quote(model.ObjectIDColumn))
	cols, raw, found, err := c.queryRow(query, f.ObjectID())
	if err != nil {
		return false, types.NewQueryError("fault "+e.Name(), query, err)
	}
	if !found {
		return false, nil
	}

	values := make(map[string]any, len(cols))
	for i, col := range cols {
		if col == model.ObjectIDColumn {
			continue
		}
		p := e.Property(col)
		if p == nil {
			return false, types.NewPersistentStoreError("fault "+e.Name(),
				fmt.Errorf("%w: column %s has no property in %s", types.ErrStructureIncompatible, col, e.Name()))
		}
		v, err := boxValue(p, raw[i])
		if err != nil {
			return false, err
		}
		values[col] = v
	}

	related := make(map[string][]*larder.ManagedObject)
	for _, rel := range e.Relationships() {
		ids, err := s.linkedIDs(c, rel, f.ObjectID())
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			obj, err := s.fetchObjectWithObjectID(c, ctx, rel.Destination(), id)
			if err != nil {
				return false, err
			}
			if obj == nil {
				s.logger.Warnw("related row missing", "store", s.id,
					"relationship", rel.String(), "objectID", f.ObjectID(), "target", id)
				continue
			}
			related[rel.Name()] = append(related[rel.Name()], obj)
		}
	}

	f.LoadFault(values, related)
	return true, nil
}

// linkedIDs returns the identifiers joined to id through rel. A reflexive
// relationship reads both orientations of the join table.
func (s *Store) linkedIDs(c *conn, rel *model.Relationship, id int64) ([]int64, error) {
	table, col, inv := quote(rel.TableName()), quote(rel.ColumnName()), quote(rel.InverseColumnName())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", inv, table, col)
	args := []any{id}
	if rel.IsReflexive() {
		query += fmt.Sprintf(" UNION SELECT %s FROM %s WHERE %s = ?", col, table, inv)
		args = append(args, id)
	}
	ids, err := c.queryInt64s(query, args...)
	if err != nil {
		return nil, types.NewQueryError("fault "+rel.String(), query, err)
	}
	return ids, nil
}

// fetchObjectWithObjectID returns a fault for the entity row with id, or
// nil when no such row exists.
func (s *Store) fetchObjectWithObjectID(c *conn, ctx *larder.Context, e *model.EntityDescription, id int64) (*larder.ManagedObject, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", quote(model.ObjectIDColumn), quote(e.Plural()), quote(model.ObjectIDColumn))
	ids, err := c.queryInt64s(query, id)
	if err != nil {
		return nil, types.NewQueryError("fetch "+e.Name(), query, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ctx.NewObjectWithID(e, id), nil
}
