package orgsync

import (
	"context"
	"strings"

	"github.com/tidehub/workdesk/internal/directory"
	"github.com/tidehub/workdesk/internal/observability/logger"
	"github.com/tidehub/workdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

// Outcome reports what a reconciliation pass did.
type Outcome struct {
	// Matched is true when the slug resolved to one of the memberships.
	Matched bool `json:"matched"`
	// Activated is true when an activation request was issued and succeeded.
	Activated bool `json:"activated"`
	// ActiveOrgID is the session's active organization after the pass,
	// empty for the personal context.
	ActiveOrgID string `json:"active_org_id,omitempty"`
}

// Reconciler applies slug decisions against the directory. Activation
// failures are logged and swallowed; the previous active context stays in
// effect and no retry is scheduled.
type Reconciler struct {
	dir     directory.Service
	metrics *metrics.Metrics
}

func NewReconciler(dir directory.Service, m *metrics.Metrics) *Reconciler {
	return &Reconciler{dir: dir, metrics: m}
}

// Reconcile runs one level-triggered pass for the session. Callers invoke it
// whenever the slug, the membership list, or the active organization changes;
// unchanged inputs settle into a no-op.
func (r *Reconciler) Reconcile(ctx context.Context, session *directory.Session, slug string, memberships []directory.Membership, loaded bool) Outcome {
	slug = strings.ToLower(strings.TrimSpace(slug))
	out := Outcome{ActiveOrgID: session.ActiveOrgID}

	cmd := Decide(slug, session.ActiveOrgID, memberships, loaded)
	if cmd == nil {
		out.Matched = matches(slug, memberships, loaded)
		r.metrics.RecordSyncPass(ctx, "noop")
		return out
	}
	out.Matched = true

	if err := r.dir.ActivateOrganization(ctx, session.SessionID, cmd.OrgID); err != nil {
		logger.FromContext(ctx).Warn("organization activation failed",
			zap.String("session_id", session.SessionID),
			zap.String("org_id", cmd.OrgID),
			zap.String("slug", cmd.Slug),
			zap.Error(err),
		)
		r.metrics.RecordSyncPass(ctx, "failed")
		return out
	}

	out.Activated = true
	out.ActiveOrgID = cmd.OrgID
	r.metrics.RecordSyncPass(ctx, "activated")
	r.metrics.RecordActivation(ctx, false)

	logger.FromContext(ctx).Info("active organization synchronized",
		zap.String("session_id", session.SessionID),
		zap.String("org_id", cmd.OrgID),
		zap.String("slug", cmd.Slug),
	)
	return out
}

// matches reports whether the slug names one of the memberships. Decide
// returns nil both on a miss and when the match is already active, so the
// no-op path needs this to tell the two apart.
func matches(slug string, memberships []directory.Membership, loaded bool) bool {
	if !loaded || slug == "" {
		return false
	}
	for _, m := range memberships {
		if m.Slug == slug {
			return true
		}
	}
	return false
}
