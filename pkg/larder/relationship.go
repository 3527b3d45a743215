package larder

import "github.com/mesh-intelligence/larder/pkg/model"

// link relates a and b through rel and rel's inverse in one step. A to-one
// end drops its previous partner first, on both sides of that old link.
func link(a *ManagedObject, rel *model.Relationship, b *ManagedObject) error {
	if !rel.IsToMany() {
		if err := dropPartners(a, rel, b); err != nil {
			return err
		}
	}
	inv := rel.Inverse()
	if inv != nil && !inv.IsToMany() {
		if err := dropPartners(b, inv, a); err != nil {
			return err
		}
	}
	a.bufferInsert(rel, b)
	if inv != nil {
		b.bufferInsert(inv, a)
	}
	return nil
}

// unlink removes the link between a and b on both ends.
func unlink(a *ManagedObject, rel *model.Relationship, b *ManagedObject) {
	a.bufferRemove(rel, b)
	if inv := rel.Inverse(); inv != nil {
		b.bufferRemove(inv, a)
	}
}

// dropPartners unlinks every object in o's rel except keep.
func dropPartners(o *ManagedObject, rel *model.Relationship, keep *ManagedObject) error {
	for _, old := range o.related(rel) {
		if keep != nil && sameObject(old, keep) {
			continue
		}
		if err := old.FireFault(); err != nil {
			return err
		}
		unlink(o, rel, old)
	}
	return nil
}
