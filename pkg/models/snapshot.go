package models

// Snapshot is the serialisable form of an item handed to store backends.
// References and collections carry item identifiers.
type Snapshot struct {
	Identifier  string              `json:"identifier"`
	Class       string              `json:"class"`
	Attributes  map[string]string   `json:"attributes,omitempty"`
	References  map[string]string   `json:"references,omitempty"`
	Collections map[string][]string `json:"collections,omitempty"`
}

func (i *Item) Snapshot() Snapshot {
	s := Snapshot{
		Identifier: i.ID,
		Class:      i.Class,
	}
	if len(i.attrs) > 0 {
		s.Attributes = make(map[string]string, len(i.attrs))
		for k, v := range i.attrs {
			s.Attributes[k] = v
		}
	}
	if len(i.refs) > 0 {
		s.References = make(map[string]string, len(i.refs))
		for k, v := range i.refs {
			s.References[k] = v.ID
		}
	}
	if len(i.collections) > 0 {
		s.Collections = make(map[string][]string, len(i.collections))
		for _, name := range i.collNames {
			s.Collections[name] = Identifiers(i.collections[name])
		}
	}
	return s
}

// Map returns the snapshot as a generic map, the shape fingerprinting and
// the graph backend work with.
func (s Snapshot) Map() map[string]any {
	m := map[string]any{
		"identifier": s.Identifier,
		"class":      s.Class,
	}
	if len(s.Attributes) > 0 {
		attrs := make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			attrs[k] = v
		}
		m["attributes"] = attrs
	}
	if len(s.References) > 0 {
		refs := make(map[string]any, len(s.References))
		for k, v := range s.References {
			refs[k] = v
		}
		m["references"] = refs
	}
	if len(s.Collections) > 0 {
		colls := make(map[string]any, len(s.Collections))
		for k, ids := range s.Collections {
			list := make([]any, len(ids))
			for n, id := range ids {
				list[n] = id
			}
			colls[k] = list
		}
		m["collections"] = colls
	}
	return m
}

func Identifiers(items []*Item) []string {
	ids := make([]string, len(items))
	for n, item := range items {
		ids[n] = item.ID
	}
	return ids
}
