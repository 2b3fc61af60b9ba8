package graphquery

import "github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"

// staticAttrs lists the invariant subset of attributes guaranteed present
// per label, independent of any tenant's dynamic schema extension.
// "external_id" is handled separately since it is a Node field, not an
// Attrs entry.
var staticAttrs = map[graphsnapshot.NodeLabel]map[string]bool{
	graphsnapshot.LabelPerson: {
		"email": true, "login": true, "given_name": true, "family_name": true,
		"status": true, "created_at": true, "activated_at": true,
		"last_login_at": true, "status_changed_at": true,
		"department": true, "title": true, "manager_id": true, "employee_number": true,
	},
	graphsnapshot.LabelTeam: {
		"name": true, "description": true, "type": true, "created_at": true, "updated_at": true,
	},
	graphsnapshot.LabelApplication: {
		"name": true, "label": true, "status": true, "sign_on_mode": true,
		"created_at": true, "updated_at": true, "visibility": true,
	},
	graphsnapshot.LabelFactor: {
		"factor_type": true, "provider": true, "vendor_name": true,
		"status": true, "created_at": true, "updated_at": true,
	},
}

// knownAttribute reports whether attr is a recognized column for label:
// either a static invariant attribute or, for Person, a dynamic column
// discovered by a prior sync's schema extension.
func knownAttribute(label graphsnapshot.NodeLabel, attr string, dynamicPersonCols []string) bool {
	if attr == "external_id" {
		return true
	}
	if staticAttrs[label][attr] {
		return true
	}
	if label == graphsnapshot.LabelPerson {
		for _, c := range dynamicPersonCols {
			if c == attr {
				return true
			}
		}
	}
	return false
}
