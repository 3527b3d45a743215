// Package types defines configuration, attribute value types, and the error
// taxonomy shared by the larder model, object graph, and persistent stores.
package types
