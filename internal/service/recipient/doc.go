// Package recipient turns a rule's abstract recipient list into concrete,
// preference-filtered email addresses.
//
// Custom addresses and caller-supplied addresses bypass preferences. Users,
// whether named directly, reached through a role, or supplied by the event
// caller, are gated by their stored opt-ins for the rule's resource type,
// falling back to the per-resource defaults in DefaultAllowed.
//
// The resolver only reads from its collaborators. Any collaborator error
// aborts the resolution, because skipping it could leak notifications to
// users who opted out.
package recipient
