package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// executeFetchRequest returns a fault for every row of the entity matching
// the request predicate. The predicate is an SQL condition used verbatim.
func (s *Store) executeFetchRequest(c *conn, req *larder.FetchRequest) ([]*larder.ManagedObject, error) {
	e := req.Entity()
	query := fmt.Sprintf("SELECT %s FROM %s", quote(model.ObjectIDColumn), quote(e.Plural()))
	if p := req.Predicate(); p != "" {
		query += " WHERE " + p
	}
	ids, err := c.queryInt64s(query)
	if err != nil {
		return nil, types.NewQueryError("fetch "+e.Name(), query, err)
	}

	ctx := req.Context()
	out := make([]*larder.ManagedObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, ctx.NewObjectWithID(e, id))
	}
	s.logger.Debugw("fetch executed", "store", s.id, "entity", e.Name(), "matches", len(out))
	return out, nil
}
