// Package rule implements authoring of automation rules: validation,
// persistence through a Repository and keeping the external scheduler's
// registrations in step with each rule's state.
//
// A rule moves Draft -> Active/Inactive (any number of toggles) -> Deleted.
// Every transition unregisters the rule from the scheduler first and then
// registers it again when it is active and scheduled.
package rule
