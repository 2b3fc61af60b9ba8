package okta

import (
	"context"
	"fmt"
)

// staticEventCatalog answers get_detailed_event_types from a fixed set of
// System Log eventType identifiers grouped under five broad categories
// (authentication, lifecycle, application, policy, group).
// A real deployment would source this from the upstream event type
// catalog endpoint.
type staticEventCatalog struct {
	categories map[string][]string
}

// NewStaticEventCatalog returns an EventTypeCatalog covering the System
// Log categories the agent is expected to narrow a broad question into.
func NewStaticEventCatalog() *staticEventCatalog {
	return &staticEventCatalog{
		categories: map[string][]string{
			"authentication": {
				"user.authentication.sso",
				"user.authentication.auth_via_mfa",
				"user.authentication.auth_via_social",
				"user.session.start",
				"user.session.end",
				"user.authentication.auth_via_IDP",
			},
			"lifecycle": {
				"user.lifecycle.create",
				"user.lifecycle.activate",
				"user.lifecycle.deactivate",
				"user.lifecycle.suspend",
				"user.lifecycle.unsuspend",
				"user.lifecycle.delete.initiated",
			},
			"application": {
				"application.user_membership.add",
				"application.user_membership.remove",
				"application.lifecycle.update",
				"application.provision.user_source_checks",
			},
			"policy": {
				"policy.lifecycle.update",
				"policy.rule.update",
				"policy.evaluate_sign_on",
			},
			"group": {
				"group.user_membership.add",
				"group.user_membership.remove",
				"group.lifecycle.update",
			},
		},
	}
}

func (c *staticEventCatalog) DetailedEventTypes(ctx context.Context, category string) ([]string, error) {
	types, ok := c.categories[category]
	if !ok {
		return nil, fmt.Errorf("okta: unknown system log category %q", category)
	}
	out := make([]string, len(types))
	copy(out, types)
	return out, nil
}
