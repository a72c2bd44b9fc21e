package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidehub/workdesk/internal/auth/session"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/directory"
	"github.com/tidehub/workdesk/internal/observability"
	"github.com/tidehub/workdesk/internal/orgsync"
	"github.com/tidehub/workdesk/internal/workspace"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	session     *directory.Session
	memberships []directory.Membership

	activations []string
	inviteCalls int
}

func (f *fakeDirectory) Session(_ context.Context, token string) (*directory.Session, error) {
	if f.session == nil || token != "valid-token" {
		return nil, directory.ErrUnauthenticated
	}
	return f.session, nil
}

func (f *fakeDirectory) Memberships(context.Context, string) ([]directory.Membership, error) {
	return f.memberships, nil
}

func (f *fakeDirectory) ActivateOrganization(_ context.Context, _ string, orgID string) error {
	f.activations = append(f.activations, orgID)
	if orgID != "" {
		for _, m := range f.memberships {
			if m.OrgID == orgID {
				f.session.ActiveOrgID = orgID
				return nil
			}
		}
		return directory.ErrNotMember
	}
	f.session.ActiveOrgID = ""
	return nil
}

func (f *fakeDirectory) Organization(_ context.Context, orgID string) (*directory.Organization, error) {
	return &directory.Organization{ID: orgID, Name: "Acme", Slug: "acme"}, nil
}

func (f *fakeDirectory) Members(context.Context, string, directory.MemberQuery) (*directory.MemberPage, error) {
	return &directory.MemberPage{TotalCount: int64(len(f.memberships))}, nil
}

func (f *fakeDirectory) CreateInvitation(_ context.Context, _ string, orgID string, req directory.InvitationRequest) (*directory.Invitation, error) {
	f.inviteCalls++
	return &directory.Invitation{ID: "900", OrgID: orgID, Email: req.Email, Role: "member", Status: "pending"}, nil
}

func (f *fakeDirectory) UpdateOrganization(_ context.Context, _ string, orgID string, update directory.OrganizationUpdate) (*directory.Organization, error) {
	name := "Acme"
	if update.Name != nil {
		name = *update.Name
	}
	return &directory.Organization{ID: orgID, Name: name, Slug: "acme"}, nil
}

func newTestServer(t *testing.T, dir *fakeDirectory) *Server {
	t.Helper()

	cfg := config.Config{Mode: config.ModeHosted, ListenAddr: ":0"}
	return New(Params{
		Config:     cfg,
		ObsConfig:  observability.Config{},
		Sessions:   session.NewManager(cfg),
		Directory:  dir,
		Reconciler: orgsync.NewReconciler(dir, nil),
		Actions:    workspace.NewActions(dir, nil, nil),
		Logger:     zap.NewNop(),
	})
}

func doRequest(s *Server, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "valid-token"})
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestSyncRequiresSession(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})

	rec := doRequest(s, http.MethodPost, "/api/session/sync", `{"slug":"acme"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSyncActivatesMatchedSlug(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2"},
		memberships: []directory.Membership{
			{OrgID: "101", Name: "Acme", Slug: "acme", Role: "admin"},
		},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodPost, "/api/session/sync", `{"slug":"acme"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var outcome orgsync.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !outcome.Matched || !outcome.Activated || outcome.ActiveOrgID != "101" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(dir.activations) != 1 {
		t.Fatalf("expected one activation, got %v", dir.activations)
	}

	// A second pass over the settled state is a no-op.
	rec = doRequest(s, http.MethodPost, "/api/session/sync", `{"slug":"acme"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(dir.activations) != 1 {
		t.Fatalf("expected no further activation, got %v", dir.activations)
	}
}

func TestSyncUnresolvableSlugIsInert(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2"},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodPost, "/api/session/sync", `{"slug":"ghost"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var outcome orgsync.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if outcome.Matched || outcome.Activated || outcome.ActiveOrgID != "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(dir.activations) != 0 {
		t.Fatalf("expected zero activations, got %v", dir.activations)
	}
}

func TestActivateClearsToPersonal(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2", ActiveOrgID: "101"},
		memberships: []directory.Membership{
			{OrgID: "101", Slug: "acme", Role: "admin"},
		},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodPost, "/api/session/activate", `{"org_id":""}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if dir.session.ActiveOrgID != "" {
		t.Fatalf("expected cleared context, got %q", dir.session.ActiveOrgID)
	}
}

func TestActivateRejectsNonMembership(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2"},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodPost, "/api/session/activate", `{"org_id":"999"}`, true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInvitationAdminGateOverHTTP(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2"},
		memberships: []directory.Membership{
			{OrgID: "101", Slug: "acme", Role: "org:member"},
		},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodPost, "/api/organizations/101/invitations", `{"email":"a@b.com","role":"org:admin"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected structured result with 200, got %d", rec.Code)
	}

	var result workspace.InviteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result for non-admin")
	}
	if result.Message == "" {
		t.Fatal("expected user-facing message")
	}
	if dir.inviteCalls != 0 {
		t.Fatalf("expected no upstream invitation, got %d", dir.inviteCalls)
	}
}

func TestListMyOrganizations(t *testing.T) {
	dir := &fakeDirectory{
		session: &directory.Session{SessionID: "1", UserID: "2"},
		memberships: []directory.Membership{
			{OrgID: "101", Name: "Acme", Slug: "acme", Role: "admin"},
			{OrgID: "202", Name: "Beta", Slug: "beta", Role: "member"},
		},
	}
	s := newTestServer(t, dir)

	rec := doRequest(s, http.MethodGet, "/api/me/organizations", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Memberships []directory.Membership `json:"memberships"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(body.Memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(body.Memberships))
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeDirectory{})
	rec := doRequest(s, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
