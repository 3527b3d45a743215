package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// executeSaveRequest writes inserted objects, then updated objects, then
// deletes deleted objects. Every object in the request is reported as
// affected.
func (s *Store) executeSaveRequest(c *conn, req *larder.SaveRequest) ([]*larder.ManagedObject, error) {
	var affected []*larder.ManagedObject
	for _, o := range req.InsertedObjects() {
		if err := s.saveManagedObject(c, o); err != nil {
			return nil, err
		}
		affected = append(affected, o)
	}
	for _, o := range req.UpdatedObjects() {
		if err := s.saveManagedObject(c, o); err != nil {
			return nil, err
		}
		affected = append(affected, o)
	}
	for _, o := range req.DeletedObjects() {
		if err := s.deleteManagedObject(c, o); err != nil {
			return nil, err
		}
		affected = append(affected, o)
	}
	s.logger.Debugw("save executed", "store", s.id,
		"inserted", len(req.InsertedObjects()), "updated", len(req.UpdatedObjects()),
		"deleted", len(req.DeletedObjects()))
	return affected, nil
}

// saveManagedObject writes o's row and its pending links. Partners reached
// through a pending link are saved first so both ends have identifiers.
// Each link is written by exactly one side: the partner is marked for the
// link before its recursive save and skips it.
func (s *Store) saveManagedObject(c *conn, o *larder.ManagedObject) error {
	if o.IsSaving() {
		return nil
	}
	if !o.HasChanges() && o.ObjectID() != larder.UnknownID {
		return nil
	}
	o.BeginSaving()
	defer o.EndSaving()

	if err := s.writeRow(c, o); err != nil {
		return err
	}

	for _, rel := range o.PendingInsertedRelationships() {
		for _, partner := range o.PendingInsertedObjects(rel) {
			if !o.HasPendingInsert(rel, partner) || o.IsSavingInserted(rel, partner) {
				continue
			}
			if err := s.saveInsertedLink(c, o, rel, partner); err != nil {
				return err
			}
		}
	}

	for _, rel := range o.PendingRemovedRelationships() {
		for _, partner := range o.PendingRemovedObjects(rel) {
			if !o.HasPendingRemove(rel, partner) || o.IsSavingRemoved(rel, partner) {
				continue
			}
			if err := s.saveRemovedLink(c, o, rel, partner); err != nil {
				return err
			}
		}
	}

	o.PersistChanges()
	return nil
}

// saveInsertedLink saves partner and writes the join row linking it to o.
// The partner's side of the link is committed only once the row exists.
func (s *Store) saveInsertedLink(c *conn, o *larder.ManagedObject, rel *model.Relationship, partner *larder.ManagedObject) error {
	inv := rel.Inverse()
	if inv != nil {
		partner.BeginSavingInserted(inv, o)
		defer partner.AbortSavingInserted(inv, o)
	}
	if err := s.saveManagedObject(c, partner); err != nil {
		return err
	}
	if err := s.insertLink(c, rel, o, partner); err != nil {
		return err
	}
	if inv != nil {
		partner.EndSavingInserted(inv, o)
	}
	return nil
}

func (s *Store) saveRemovedLink(c *conn, o *larder.ManagedObject, rel *model.Relationship, partner *larder.ManagedObject) error {
	inv := rel.Inverse()
	if inv != nil {
		partner.BeginSavingRemoved(inv, o)
		defer partner.AbortSavingRemoved(inv, o)
	}
	if err := s.saveManagedObject(c, partner); err != nil {
		return err
	}
	if err := s.deleteLink(c, rel, o, partner); err != nil {
		return err
	}
	if inv != nil {
		partner.EndSavingRemoved(inv, o)
	}
	return nil
}

// writeRow inserts o when it has no identifier and updates it otherwise.
func (s *Store) writeRow(c *conn, o *larder.ManagedObject) error {
	e := o.Entity()
	pending := o.PendingValues()

	var (
		cols []string
		args []any
	)
	for _, p := range e.Properties() {
		v, ok := pending[p.Name()]
		if !ok {
			continue
		}
		pv, err := packValue(p, v)
		if err != nil {
			return err
		}
		cols = append(cols, quote(p.Name()))
		args = append(args, pv)
	}

	if o.ObjectID() == larder.UnknownID {
		var query string
		if len(cols) == 0 {
			query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(e.Plural()))
		} else {
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(e.Plural()), strings.Join(cols, ", "), marks)
		}
		res, err := c.exec(query, args...)
		if err != nil {
			return types.NewQueryError("insert "+e.Name(), query, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return types.NewQueryError("insert "+e.Name(), query, err)
		}
		o.SetObjectID(id)
		return nil
	}

	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(e.Plural()), strings.Join(sets, ", "), quote(model.ObjectIDColumn))
	if _, err := c.exec(query, append(args, o.ObjectID())...); err != nil {
		return types.NewQueryError("update "+e.Name(), query, err)
	}
	return nil
}

func (s *Store) insertLink(c *conn, rel *model.Relationship, o, partner *larder.ManagedObject) error {
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		quote(rel.TableName()), quote(rel.ColumnName()), quote(rel.InverseColumnName()))
	if _, err := c.exec(query, o.ObjectID(), partner.ObjectID()); err != nil {
		return types.NewQueryError("link "+rel.String(), query, err)
	}
	return nil
}

// deleteLink removes the join row pairing o and partner. A reflexive
// relationship may have stored the pair in either orientation.
func (s *Store) deleteLink(c *conn, rel *model.Relationship, o, partner *larder.ManagedObject) error {
	col, inv := quote(rel.ColumnName()), quote(rel.InverseColumnName())
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", quote(rel.TableName()), col, inv)
	args := []any{o.ObjectID(), partner.ObjectID()}
	if rel.IsReflexive() {
		query += fmt.Sprintf(" OR %s = ? AND %s = ?", col, inv)
		args = append(args, partner.ObjectID(), o.ObjectID())
	}
	if _, err := c.exec(query, args...); err != nil {
		return types.NewQueryError("unlink "+rel.String(), query, err)
	}
	return nil
}

// deleteManagedObject drops o's pending changes, unlinks it from every
// partner, saves those removals and deletes its row.
func (s *Store) deleteManagedObject(c *conn, o *larder.ManagedObject) error {
	o.DiscardChanges()
	if o.ObjectID() == larder.UnknownID {
		return nil
	}
	for _, rel := range o.Entity().Relationships() {
		partners, err := o.Related(rel)
		if err != nil {
			return err
		}
		for _, p := range partners {
			if err := o.RemoveFrom(rel, p); err != nil {
				return err
			}
		}
	}
	if err := s.saveManagedObject(c, o); err != nil {
		return err
	}

	e := o.Entity()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(e.Plural()), quote(model.ObjectIDColumn))
	if _, err := c.exec(query, o.ObjectID()); err != nil {
		return types.NewQueryError("delete "+e.Name(), query, err)
	}
	return nil
}
