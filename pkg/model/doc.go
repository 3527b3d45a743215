// Package model holds the static schema of a managed object graph: entity
// descriptions, their properties and relationships, and the versioned model
// parsed from an XML or YAML schema document.
//
// Relationships derive deterministic join-table and join-column names so any
// store can lay out many-valued relationships without extra metadata:
//
//	table:  "Z_" + upper(md5(sorted(thisEntity, inverseEntity, thisName, inverseName)))[:16]
//	column: lower(md5(thisEntity + thisName))[:16]
package model
