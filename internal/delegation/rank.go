package delegation

import (
	"cmp"
	"strings"

	"approval-routing/pkg/models"
)

// Compare orders rules by precedence: a negative result means a outranks b.
//
// Keys, in order: user principals before role principals, more scope
// dimensions first, higher priority first, later start first (an open start
// counts as the earliest), then id ascending.
func Compare(a, b models.DelegationRule) int {
	if c := cmp.Compare(principalRank(a.Principal.Type), principalRank(b.Principal.Type)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Scope.Dimensions(), a.Scope.Dimensions()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := compareStart(a, b); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Outranks reports whether a takes precedence over b.
func Outranks(a, b models.DelegationRule) bool {
	return Compare(a, b) < 0
}

func principalRank(t models.IdentityType) int {
	switch t {
	case models.IdentityUser:
		return 0
	case models.IdentityRole:
		return 1
	default:
		return 2
	}
}

func compareStart(a, b models.DelegationRule) int {
	switch {
	case a.StartAt == nil && b.StartAt == nil:
		return 0
	case a.StartAt == nil:
		return 1
	case b.StartAt == nil:
		return -1
	}
	return b.StartAt.Compare(*a.StartAt)
}
