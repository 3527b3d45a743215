package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/larder/pkg/types"
)

var rules = inflect.NewDefaultRuleset()

// Model is one version of a schema document: the entity descriptions of that
// version with relationship pairs linked to their inverses.
type Model struct {
	source   string
	data     []byte
	format   Format
	version  string
	versions []string
	entities []*EntityDescription
	opts     options
}

// Option configures schema parsing.
type Option func(*options)

type options struct {
	source          string
	requireInverses bool
}

// WithSource names the document in error messages.
func WithSource(name string) Option {
	return func(o *options) { o.source = name }
}

// RequireInverses rejects relationships that declare no inverse.
func RequireInverses() Option {
	return func(o *options) { o.requireInverses = true }
}

// Load reads the schema document at path and parses version, or the
// document's current version when version is empty.
func Load(path, version string, opts ...Option) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ModelParseError{Source: path, Msg: "read schema", Err: err}
	}
	return Parse(data, FormatFromPath(path), version, append([]Option{WithSource(path)}, opts...)...)
}

// Parse builds a Model from a schema document.
func Parse(data []byte, format Format, version string, opts ...Option) (*Model, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, &types.ModelParseError{Source: o.source, Msg: "malformed document", Err: err}
	}

	if version == "" {
		version = doc.CurrentVersion
	}
	if version == "" && len(doc.Models) == 1 {
		version = doc.Models[0].Version
	}
	if version == "" {
		return nil, &types.ModelParseError{Source: o.source, Msg: "no version requested and no current version declared"}
	}

	m := &Model{source: o.source, data: data, format: format, version: version, opts: o}
	var block *modelBlock
	for i := range doc.Models {
		m.versions = append(m.versions, doc.Models[i].Version)
		if doc.Models[i].Version == version && block == nil {
			block = &doc.Models[i]
		}
	}
	if block == nil {
		return nil, &types.ModelVersionError{Source: o.source, Version: version}
	}
	if err := m.build(block); err != nil {
		return nil, err
	}
	return m, nil
}

type pendingInverse struct {
	rel     *Relationship
	inverse string
}

// inflectSingulars gives each ToMany relationship without a declared
// singular the inflected singular of its name, unless that name is taken.
func inflectSingulars(e *EntityDescription) {
	for _, r := range e.Relationships() {
		if r.singular != "" || !r.IsToMany() {
			continue
		}
		if s := rules.Singularize(r.name); s != r.name && e.AttributeWithName(s) == nil {
			r.singular = s
		}
	}
}

func (m *Model) build(block *modelBlock) error {
	var queue []pendingInverse
	for _, ed := range block.Entities {
		if ed.Name == "" {
			return m.parseError("entity without a name")
		}
		entity := NewEntityDescription(ed.Name, ed.Plural, ed.Class)
		if clash := m.EntityWithName(entity.name); clash != nil {
			return m.parseError(fmt.Sprintf("duplicate entity name %q", entity.name))
		}
		if clash := m.EntityWithName(entity.plural); clash != nil {
			return m.parseError(fmt.Sprintf("entity %s: plural %q already used by %s", entity.name, entity.plural, clash.name))
		}

		for _, pd := range ed.Properties {
			t, err := ParseAttributeType(pd.Type)
			if err != nil {
				return m.parseError(fmt.Sprintf("property %s.%s: %v", ed.Name, pd.Name, err))
			}
			p, err := entity.AddProperty(pd.Name, t)
			if err != nil {
				return m.wrapError(err)
			}
			if err := p.SetDefaultValue(pd.Default); err != nil {
				return m.wrapError(err)
			}
		}

		for _, rd := range ed.Relationships {
			if rd.Type == "" {
				return m.parseError(fmt.Sprintf("relationship %s.%s: missing target type", ed.Name, rd.Name))
			}
			to := ToOne
			if strings.EqualFold(rd.To, "many") {
				to = ToMany
			}
			r, err := entity.AddRelationship(rd.Name, rd.Type, to, rd.Singular)
			if err != nil {
				return m.wrapError(err)
			}
			if rd.Inverse != "" {
				queue = append(queue, pendingInverse{rel: r, inverse: rd.Inverse})
			}
		}
		inflectSingulars(entity)
		m.entities = append(m.entities, entity)
	}

	for _, e := range m.entities {
		for _, r := range e.Relationships() {
			dest := m.EntityWithName(r.target)
			if dest == nil {
				return m.parseError(fmt.Sprintf("relationship %s: target entity %q is not defined in version %s", r, r.target, m.version))
			}
			r.destination = dest
		}
	}

	for _, q := range queue {
		if err := m.link(q.rel, q.inverse); err != nil {
			return err
		}
	}

	if m.opts.requireInverses {
		for _, e := range m.entities {
			for _, r := range e.Relationships() {
				if r.inverse == nil {
					return m.parseError(fmt.Sprintf("relationship %s declares no inverse", r))
				}
			}
		}
	}
	return nil
}

func (m *Model) link(r *Relationship, inverseName string) error {
	attr := r.destination.AttributeWithName(inverseName)
	if attr == nil {
		return m.parseError(fmt.Sprintf("relationship %s: inverse %q not found on %s", r, inverseName, r.destination.name))
	}
	inv, ok := attr.(*Relationship)
	if !ok {
		return m.parseError(fmt.Sprintf("relationship %s: inverse %q on %s is not a relationship", r, inverseName, r.destination.name))
	}
	if inv.destination != r.entity {
		return m.parseError(fmt.Sprintf("relationship %s: inverse %s targets %s", r, inv, inv.target))
	}
	if (r.inverse != nil && r.inverse != inv) || (inv.inverse != nil && inv.inverse != r) {
		return m.parseError(fmt.Sprintf("relationship %s: conflicting inverse declarations with %s", r, inv))
	}
	r.inverse = inv
	inv.inverse = r
	return nil
}

func (m *Model) parseError(msg string) error {
	return &types.ModelParseError{Source: m.source, Msg: msg}
}

func (m *Model) wrapError(err error) error {
	return &types.ModelParseError{Source: m.source, Msg: "invalid declaration", Err: err}
}

// ParseAttributeType resolves a declared type name case-insensitively.
// An empty name means String.
func ParseAttributeType(name string) (types.AttributeType, error) {
	if strings.TrimSpace(name) == "" {
		return types.TypeString, nil
	}
	t := types.AttributeType(cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(name))))
	if !types.IsValidAttributeType(t) {
		return "", fmt.Errorf("unrecognized type %q", name)
	}
	return t, nil
}

// Source returns the document name given to Load or WithSource.
func (m *Model) Source() string { return m.source }

// Version returns the parsed version identifier.
func (m *Model) Version() string { return m.version }

// Versions lists every version block in the document, in order.
func (m *Model) Versions() []string { return append([]string(nil), m.versions...) }

// Entities returns the entity descriptions in declaration order.
func (m *Model) Entities() []*EntityDescription {
	return append([]*EntityDescription(nil), m.entities...)
}

// EntityWithName returns the entity whose name or plural equals name, or nil.
func (m *Model) EntityWithName(name string) *EntityDescription {
	for _, e := range m.entities {
		if e.name == name || e.plural == name {
			return e
		}
	}
	return nil
}

// AttributeWithPath resolves "Entity.attribute". It returns nil if either
// part is absent.
func (m *Model) AttributeWithPath(path string) Attribute {
	entityName, attrName, ok := strings.Cut(path, ".")
	if !ok {
		return nil
	}
	e := m.EntityWithName(entityName)
	if e == nil {
		return nil
	}
	return e.AttributeWithName(attrName)
}

// ModelForVersion parses the same document again for another version.
func (m *Model) ModelForVersion(version string) (*Model, error) {
	if version == m.version {
		return m, nil
	}
	opts := []Option{WithSource(m.source)}
	if m.opts.requireInverses {
		opts = append(opts, RequireInverses())
	}
	return Parse(m.data, m.format, version, opts...)
}
