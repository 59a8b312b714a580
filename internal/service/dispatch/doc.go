// Package dispatch turns a notification request into transport calls. It
// resolves the recipients, normalizes the placeholders, renders the template
// once and fans the rendered body out to every recipient through a bounded
// pool of senders.
//
// A failed send is recorded against its recipient and never aborts the
// sends to the others.
package dispatch
