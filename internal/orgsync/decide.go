// Package orgsync keeps a session's active organization consistent with the
// organization slug named by the current URL. The decision is a pure function
// of its inputs; the reconciler applies it through the directory.
package orgsync

import (
	"strings"

	"github.com/tidehub/workdesk/internal/directory"
)

// Command is the single activation a reconciliation pass may require.
type Command struct {
	OrgID string
	Slug  string
}

// Decide compares the URL slug against the membership set and the session's
// active organization. It returns nil when nothing has to change:
//   - the slug is empty or the membership list has not loaded yet,
//   - the slug matches no membership,
//   - the matched organization is already active.
//
// Decide never invents an organization and never falls back to another
// membership on a miss.
func Decide(slug string, activeOrgID string, memberships []directory.Membership, loaded bool) *Command {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || !loaded {
		return nil
	}

	for _, m := range memberships {
		if m.Slug != slug {
			continue
		}
		if m.OrgID == activeOrgID {
			return nil
		}
		return &Command{OrgID: m.OrgID, Slug: m.Slug}
	}
	return nil
}
