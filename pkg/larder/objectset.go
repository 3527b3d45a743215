package larder

// objectSet is an insertion-ordered set of managed objects. Two objects are
// the same member when they are the same value or share an entity and a
// known objectID.
type objectSet struct {
	items []*ManagedObject
}

func sameObject(a, b *ManagedObject) bool {
	if a == b {
		return true
	}
	return a.entity == b.entity && a.objectID != UnknownID && a.objectID == b.objectID
}

func (s *objectSet) len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *objectSet) contains(o *ManagedObject) bool {
	if s == nil {
		return false
	}
	for _, it := range s.items {
		if sameObject(it, o) {
			return true
		}
	}
	return false
}

// add appends o unless present. It reports whether o was added.
func (s *objectSet) add(o *ManagedObject) bool {
	if s.contains(o) {
		return false
	}
	s.items = append(s.items, o)
	return true
}

// remove drops o. It reports whether o was present.
func (s *objectSet) remove(o *ManagedObject) bool {
	if s == nil {
		return false
	}
	for i, it := range s.items {
		if sameObject(it, o) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *objectSet) slice() []*ManagedObject {
	if s == nil {
		return nil
	}
	return append([]*ManagedObject(nil), s.items...)
}
