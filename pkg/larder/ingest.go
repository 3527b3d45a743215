package larder

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// ParseCallback is called for every object built by graph ingestion, after
// its values and relationships are set.
type ParseCallback func(obj *ManagedObject)

// node is a generic element of an ingestion document.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// ParseObjectsFromFile ingests the object graph in the XML file at path.
func (c *Context) ParseObjectsFromFile(path string, cb ParseCallback) ([]*ManagedObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.ParseObjectsFromReader(f, cb)
}

// ParseObjectsFromString ingests an object graph from an XML string.
func (c *Context) ParseObjectsFromString(s string, cb ParseCallback) ([]*ManagedObject, error) {
	return c.ParseObjectsFromReader(strings.NewReader(s), cb)
}

// ParseObjectsFromBytes ingests an object graph from XML data.
func (c *Context) ParseObjectsFromBytes(data []byte, cb ParseCallback) ([]*ManagedObject, error) {
	return c.ParseObjectsFromReader(bytes.NewReader(data), cb)
}

// ParseObjectsFromReader ingests an object graph. Each child of the root
// element names an entity; its children name properties, whose text is
// coerced to the property type, or relationships, whose children are
// nested entity elements. Attributes of an entity element set properties
// too; any other attribute name is an error. It returns the objects built for the root's children.
func (c *Context) ParseObjectsFromReader(r io.Reader, cb ParseCallback) ([]*ManagedObject, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode object graph: %w", err)
	}
	var out []*ManagedObject
	for i := range root.Children {
		obj, err := c.parseObject(&root.Children[i], cb)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (c *Context) parseObject(n *node, cb ParseCallback) (*ManagedObject, error) {
	entity := c.Model().EntityWithName(n.XMLName.Local)
	if entity == nil {
		return nil, &types.EntityNotFoundError{Name: n.XMLName.Local}
	}
	obj := c.NewObject(entity)

	for _, a := range n.Attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		switch attr := entity.AttributeWithName(a.Name.Local).(type) {
		case *model.Property:
			if err := setIngested(obj, attr, a.Value); err != nil {
				return nil, err
			}
		case *model.Relationship:
			return nil, &types.ManagedObjectError{
				Entity:    entity.Name(),
				Attribute: a.Name.Local,
				Msg:       "relationship given as an XML attribute",
			}
		default:
			return nil, &types.ManagedObjectError{
				Entity:    entity.Name(),
				Attribute: a.Name.Local,
				Msg:       "unknown attribute in object graph",
			}
		}
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch attr := entity.AttributeWithName(child.XMLName.Local).(type) {
		case *model.Property:
			if err := setIngested(obj, attr, content(child)); err != nil {
				return nil, err
			}
		case *model.Relationship:
			for j := range child.Children {
				related, err := c.parseObject(&child.Children[j], cb)
				if err != nil {
					return nil, err
				}
				if err := obj.AddTo(attr, related); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &types.ManagedObjectError{
				Entity:    entity.Name(),
				Attribute: child.XMLName.Local,
				Msg:       "unknown attribute in object graph",
			}
		}
	}
	if cb != nil {
		cb(obj)
	}
	return obj, nil
}

// content returns an element's trimmed text, or its value attribute.
func content(n *node) string {
	if s := strings.TrimSpace(n.Text); s != "" {
		return s
	}
	for _, a := range n.Attrs {
		if a.Name.Local == "value" {
			return a.Value
		}
	}
	return ""
}

func setIngested(obj *ManagedObject, prop *model.Property, raw string) error {
	if raw == "" && prop.Type() != types.TypeString {
		return obj.Set(prop, nil)
	}
	v, err := model.Coerce(prop.Type(), raw)
	if err != nil {
		return &types.InvalidDataTypeError{Attribute: prop.Entity().Name() + "." + prop.Name(), Type: prop.Type(), Value: raw, Err: err}
	}
	return obj.Set(prop, v)
}
