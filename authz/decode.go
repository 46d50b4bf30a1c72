package authz

import (
	"encoding/json"
	"strings"
)

// decodeAuthorities is the single compatibility shim for the authorities
// response. Strategies are tried in order; the first that yields a
// non-empty result wins. The canonical shape comes first, so narrowing
// this to one contract later only deletes branches.
func decodeAuthorities(raw json.RawMessage) (roles, perms []string, ok bool) {
	type sets struct {
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}

	// Canonical: {"roles": [...], "permissions": [...]}.
	var flat sets
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat.Roles)+len(flat.Permissions) > 0 {
			return flat.Roles, flat.Permissions, true
		}
	}

	// Nested: {"authorities": {"roles": [...], "permissions": [...]}}.
	var nested struct {
		Authorities sets `json:"authorities"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested.Authorities.Roles)+len(nested.Authorities.Permissions) > 0 {
			return nested.Authorities.Roles, nested.Authorities.Permissions, true
		}
	}

	// Mixed list: {"authorities": ["ROLE_X", "PERM_Y", ...]}.
	var wrapped struct {
		Authorities []string `json:"authorities"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Authorities) > 0 {
		roles, perms = splitAuthorities(wrapped.Authorities)
		return roles, perms, true
	}

	// Bare mixed list: ["ROLE_X", "PERM_Y", ...].
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		roles, perms = splitAuthorities(list)
		return roles, perms, true
	}

	// An empty-but-canonical object is still an answer: the user holds
	// nothing. Anything else is an unrecognized shape.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err == nil {
		if _, hasRoles := keys["roles"]; hasRoles {
			return nil, nil, true
		}
		if _, hasPerms := keys["permissions"]; hasPerms {
			return nil, nil, true
		}
		if _, hasAuth := keys["authorities"]; hasAuth {
			return nil, nil, true
		}
	}
	return nil, nil, false
}

// splitAuthorities partitions a mixed authority list on the ROLE_ prefix.
func splitAuthorities(values []string) (roles, perms []string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "ROLE_") {
			roles = append(roles, v)
		} else {
			perms = append(perms, v)
		}
	}
	return roles, perms
}
