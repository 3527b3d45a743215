package model

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the schema document syntax.
type Format string

// Supported schema document formats.
const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension. Unknown extensions
// are read as XML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatXML
	}
}

// document is the format-neutral shape of a schema document.
type document struct {
	CurrentVersion string       `yaml:"current-version"`
	Models         []modelBlock `yaml:"models"`
}

type modelBlock struct {
	Version  string       `yaml:"version"`
	Entities []entityDecl `yaml:"entities"`
}

type entityDecl struct {
	Name          string             `yaml:"name"`
	Plural        string             `yaml:"plural"`
	Class         string             `yaml:"class"`
	Properties    []propertyDecl     `yaml:"properties"`
	Relationships []relationshipDecl `yaml:"relationships"`
}

type propertyDecl struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

type relationshipDecl struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	To       string `yaml:"to"`
	Singular string `yaml:"singular"`
	Inverse  string `yaml:"inverse"`
}

// XML shapes. Attributes carry the declarations; current-version may be a
// root attribute or a child element.
type xmlDocument struct {
	CurrentVersionAttr string     `xml:"current-version,attr"`
	CurrentVersion     string     `xml:"current-version"`
	Models             []xmlModel `xml:"model"`
}

type xmlModel struct {
	Version  string      `xml:"version,attr"`
	Entities []xmlEntity `xml:"entity"`
}

type xmlEntity struct {
	Name          string            `xml:"name,attr"`
	Plural        string            `xml:"plural,attr"`
	Class         string            `xml:"class,attr"`
	Properties    []xmlProperty     `xml:"property"`
	Relationships []xmlRelationship `xml:"relationship"`
}

type xmlProperty struct {
	Name         string  `xml:"name,attr"`
	Type         string  `xml:"type,attr"`
	DefaultValue *string `xml:"defaultValue,attr"`
}

type xmlRelationship struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	To       string `xml:"to,attr"`
	Singular string `xml:"singular,attr"`
	Inverse  string `xml:"inverse,attr"`
}

func decodeDocument(data []byte, format Format) (*document, error) {
	switch format {
	case FormatYAML:
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return &doc, nil
	case FormatXML:
		return decodeXML(data)
	default:
		return nil, fmt.Errorf("unknown schema format %q", format)
	}
}

func decodeXML(data []byte) (*document, error) {
	var x xmlDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&x); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	doc := &document{CurrentVersion: strings.TrimSpace(x.CurrentVersion)}
	if doc.CurrentVersion == "" {
		doc.CurrentVersion = x.CurrentVersionAttr
	}
	for _, xm := range x.Models {
		block := modelBlock{Version: xm.Version}
		for _, xe := range xm.Entities {
			ed := entityDecl{Name: xe.Name, Plural: xe.Plural, Class: xe.Class}
			for _, xp := range xe.Properties {
				pd := propertyDecl{Name: xp.Name, Type: xp.Type}
				if xp.DefaultValue != nil {
					pd.Default = *xp.DefaultValue
				}
				ed.Properties = append(ed.Properties, pd)
			}
			for _, xr := range xe.Relationships {
				ed.Relationships = append(ed.Relationships, relationshipDecl(xr))
			}
			block.Entities = append(block.Entities, ed)
		}
		doc.Models = append(doc.Models, block)
	}
	return doc, nil
}
