// Package httputil holds the JSON envelope helpers used by the rule, event,
// schedule and delivery handlers. Validation failures carry the name of the
// rejected field so the authoring UI can highlight it.
package httputil
