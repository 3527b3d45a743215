package types

// AttributeType names the declared type of an entity property.
type AttributeType string

// Property attribute types accepted in schema documents.
const (
	TypeString  AttributeType = "String"
	TypeInteger AttributeType = "Integer"
	TypeFloat   AttributeType = "Float"
	TypeBoolean AttributeType = "Boolean"
	TypeDate    AttributeType = "Date"
	TypeBinary  AttributeType = "Binary"
)

// validAttributeTypes is the set of recognized attribute types.
var validAttributeTypes = map[AttributeType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeFloat:   true,
	TypeBoolean: true,
	TypeDate:    true,
	TypeBinary:  true,
}

// IsValidAttributeType reports whether the given type is recognized.
func IsValidAttributeType(t AttributeType) bool {
	return validAttributeTypes[t]
}

// SQLType returns the column type a relational store declares for t.
// Dates are stored as Unix epoch seconds.
func (t AttributeType) SQLType() string {
	switch t {
	case TypeInteger, TypeDate:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeBoolean:
		return "SMALLINT"
	case TypeBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}
