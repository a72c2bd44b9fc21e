package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	authrepository "github.com/tidehub/workdesk/internal/auth/repository"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/organization/domain"
	"github.com/tidehub/workdesk/internal/organization/repository"
	"github.com/tidehub/workdesk/internal/providers/email"
	"github.com/tidehub/workdesk/pkg/db"
	"go.uber.org/zap"
)

type testEnv struct {
	svc   domain.Service
	users authdomain.Repository
	node  *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.OrganizationInvitation{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	users, _ := authrepository.New(dbConn)
	repo := repository.NewRepository(dbConn)
	policy := config.NewStaticInvitePolicyHolder(config.DefaultInvitePolicy())
	logger := zap.NewNop()

	svc := New(dbConn, repo, users, node, policy, email.NewNoop(logger), config.Config{
		InviteURL: "http://localhost:3000/workspace/workspace-selector",
	}, logger)

	return &testEnv{svc: svc, users: users, node: node}
}

func (e *testEnv) createUser(t *testing.T, emailAddr string) *authdomain.User {
	t.Helper()
	user := &authdomain.User{
		ID:        e.node.Generate(),
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestCreateOrganizationMakesCreatorAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{
		Name: "Acme Inc",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if org.Slug != "acme-inc" {
		t.Fatalf("expected slug acme-inc, got %q", org.Slug)
	}

	orgID, err := snowflake.ParseString(org.ID)
	if err != nil {
		t.Fatalf("bad org id: %v", err)
	}
	role, err := env.svc.RoleOf(context.Background(), orgID, alice.ID)
	if err != nil {
		t.Fatalf("role lookup failed: %v", err)
	}
	if role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %q", role)
	}
}

func TestCreateOrganizationSlugCollision(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")

	first, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if first.Slug != "acme" {
		t.Fatalf("expected acme, got %q", first.Slug)
	}
	if second.Slug != "acme-2" {
		t.Fatalf("expected acme-2, got %q", second.Slug)
	}
}

func TestUpdateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	mallory := env.createUser(t, "mallory@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	name := "Evil Corp"
	_, err = env.svc.Update(context.Background(), mallory.ID, org.ID, domain.UpdateOrganizationRequest{Name: &name})
	if err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := env.svc.Update(context.Background(), alice.ID, org.ID, domain.UpdateOrganizationRequest{
		Name:     &name,
		Metadata: map[string]any{"website": "https://evil.example.com"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected %q, got %q", name, updated.Name)
	}
	if updated.Metadata["website"] != "https://evil.example.com" {
		t.Fatalf("metadata not persisted: %v", updated.Metadata)
	}
}

func TestInviteAndAccept(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	invitation, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "Bob@Example.com",
		Role:  "org:member",
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if invitation.Role != domain.RoleMember {
		t.Fatalf("expected normalized role member, got %q", invitation.Role)
	}
	if invitation.Code == "" {
		t.Fatal("expected invitation code")
	}

	membership, err := env.svc.AcceptInvitation(context.Background(), bob.ID, invitation.Code)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if membership.Slug != org.Slug || membership.Role != domain.RoleMember {
		t.Fatalf("unexpected membership: %+v", membership)
	}

	page, err := env.svc.ListMembers(context.Background(), org.ID, domain.ListMembersRequest{})
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 members, got %d", page.TotalCount)
	}

	if _, err := env.svc.AcceptInvitation(context.Background(), bob.ID, invitation.Code); err != domain.ErrInvitationResolved {
		t.Fatalf("expected ErrInvitationResolved on reuse, got %v", err)
	}
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	carol := env.createUser(t, "carol@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "bob@example.com",
		Role:  "org:owner",
	}); err != domain.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if _, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "not-an-email",
		Role:  "member",
	}); err != domain.ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	if _, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "alice@example.com",
		Role:  "member",
	}); err != domain.ErrAlreadyMember {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	if _, err := env.svc.Invite(context.Background(), carol.ID, org.ID, domain.InviteRequest{
		Email: "bob@example.com",
		Role:  "member",
	}); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden for non-admin inviter, got %v", err)
	}
}

func TestAcceptInvitationEmailMismatch(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	mallory := env.createUser(t, "mallory@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	invitation, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "bob@example.com",
		Role:  "member",
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if _, err := env.svc.AcceptInvitation(context.Background(), mallory.ID, invitation.Code); err != domain.ErrInvitationEmailMatch {
		t.Fatalf("expected ErrInvitationEmailMatch, got %v", err)
	}
}

func TestRevokedInvitationCannotBeAccepted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	invitation, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "bob@example.com",
		Role:  "member",
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if err := env.svc.RevokeInvitation(context.Background(), alice.ID, invitation.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, err := env.svc.AcceptInvitation(context.Background(), bob.ID, invitation.Code); err != domain.ErrInvitationResolved {
		t.Fatalf("expected ErrInvitationResolved, got %v", err)
	}
}

func TestListMembersQueryFilter(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	org, err := env.svc.Create(context.Background(), alice.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	invitation, err := env.svc.Invite(context.Background(), alice.ID, org.ID, domain.InviteRequest{
		Email: "bob@example.com",
		Role:  "member",
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if _, err := env.svc.AcceptInvitation(context.Background(), bob.ID, invitation.Code); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	page, err := env.svc.ListMembers(context.Background(), org.ID, domain.ListMembersRequest{Query: "bob"})
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if page.TotalCount != 1 || len(page.Members) != 1 || page.Members[0].Email != "bob@example.com" {
		t.Fatalf("unexpected page: %+v", page)
	}

	page, err = env.svc.ListMembers(context.Background(), org.ID, domain.ListMembersRequest{Roles: []string{"org:admin"}})
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if page.TotalCount != 1 || page.Members[0].Email != "alice@example.com" {
		t.Fatalf("unexpected admins page: %+v", page)
	}
}
