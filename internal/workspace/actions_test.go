package workspace

import (
	"context"
	"fmt"
	"testing"

	"github.com/tidehub/workdesk/internal/directory"
)

type fakeDirectory struct {
	directory.Service

	memberships []directory.Membership

	inviteCalls int
	updateCalls int
	inviteErr   error
	updateErr   error
}

func (f *fakeDirectory) Memberships(context.Context, string) ([]directory.Membership, error) {
	return f.memberships, nil
}

func (f *fakeDirectory) CreateInvitation(_ context.Context, _ string, orgID string, req directory.InvitationRequest) (*directory.Invitation, error) {
	f.inviteCalls++
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return &directory.Invitation{
		ID:     "900",
		OrgID:  orgID,
		Email:  req.Email,
		Role:   "member",
		Status: "pending",
	}, nil
}

func (f *fakeDirectory) UpdateOrganization(_ context.Context, _ string, orgID string, update directory.OrganizationUpdate) (*directory.Organization, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	name := "Acme"
	if update.Name != nil {
		name = *update.Name
	}
	return &directory.Organization{ID: orgID, Name: name, Slug: "acme"}, nil
}

func (f *fakeDirectory) Members(context.Context, string, directory.MemberQuery) (*directory.MemberPage, error) {
	return &directory.MemberPage{TotalCount: 1}, nil
}

func (f *fakeDirectory) Organization(_ context.Context, orgID string) (*directory.Organization, error) {
	return &directory.Organization{ID: orgID, Name: "Acme", Slug: "acme"}, nil
}

func newSession() *directory.Session {
	return &directory.Session{SessionID: "1", UserID: "2"}
}

func TestInviteMemberRejectsNonAdmin(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "org:member"}},
	}
	actions := NewActions(dir, nil, nil)

	result := actions.InviteMember(context.Background(), newSession(), "101", "a@b.com", "org:admin")
	if result.Success {
		t.Fatal("expected failure result for non-admin inviter")
	}
	if result.Message == "" {
		t.Fatal("expected user-facing message")
	}
	if dir.inviteCalls != 0 {
		t.Fatalf("expected no upstream invitation, got %d calls", dir.inviteCalls)
	}
}

func TestInviteMemberAsAdmin(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "org:admin"}},
	}
	actions := NewActions(dir, nil, nil)

	result := actions.InviteMember(context.Background(), newSession(), "101", "a@b.com", "member")
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Invitation == nil || result.Invitation.Email != "a@b.com" {
		t.Fatalf("unexpected invitation: %+v", result.Invitation)
	}
	if dir.inviteCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", dir.inviteCalls)
	}
}

func TestInviteMemberUpstreamFailure(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "admin"}},
		inviteErr:   fmt.Errorf("%w: invalid_email", directory.ErrInvalidArgument),
	}
	actions := NewActions(dir, nil, nil)

	result := actions.InviteMember(context.Background(), newSession(), "101", "bad", "member")
	if result.Success {
		t.Fatal("expected failure result on upstream validation error")
	}
	if result.Message == "" {
		t.Fatal("expected validation detail in message")
	}
}

func TestUpdateOrganizationRejectsNonMember(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "202", Slug: "beta", Role: "admin"}},
	}
	actions := NewActions(dir, nil, nil)

	name := "New Name"
	result := actions.UpdateOrganization(context.Background(), newSession(), "101", directory.OrganizationUpdate{Name: &name})
	if result.Success {
		t.Fatal("expected failure result for non-member")
	}
	if dir.updateCalls != 0 {
		t.Fatalf("expected no upstream update, got %d calls", dir.updateCalls)
	}
}

func TestUpdateOrganizationRejectsMemberRole(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "member"}},
	}
	actions := NewActions(dir, nil, nil)

	name := "New Name"
	result := actions.UpdateOrganization(context.Background(), newSession(), "101", directory.OrganizationUpdate{Name: &name})
	if result.Success {
		t.Fatal("expected failure result for member role")
	}
	if dir.updateCalls != 0 {
		t.Fatalf("expected no upstream update, got %d calls", dir.updateCalls)
	}
}

func TestUpdateOrganizationAsAdmin(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "admin"}},
	}
	actions := NewActions(dir, nil, nil)

	name := "New Name"
	result := actions.UpdateOrganization(context.Background(), newSession(), "101", directory.OrganizationUpdate{Name: &name})
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Organization == nil || result.Organization.Name != "New Name" {
		t.Fatalf("unexpected organization: %+v", result.Organization)
	}
	if dir.updateCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", dir.updateCalls)
	}
}

func TestMembersReadableByAnyMember(t *testing.T) {
	dir := &fakeDirectory{
		memberships: []directory.Membership{{OrgID: "101", Slug: "acme", Role: "member"}},
	}
	actions := NewActions(dir, nil, nil)

	result := actions.Members(context.Background(), newSession(), "101", directory.MemberQuery{})
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Page == nil || result.Page.TotalCount != 1 {
		t.Fatalf("unexpected page: %+v", result.Page)
	}

	outsider := &fakeDirectory{}
	result = NewActions(outsider, nil, nil).Members(context.Background(), newSession(), "101", directory.MemberQuery{})
	if result.Success {
		t.Fatal("expected failure for non-member")
	}
}
