package local

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	authrepository "github.com/tidehub/workdesk/internal/auth/repository"
	authservice "github.com/tidehub/workdesk/internal/auth/service"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/directory"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
	orgrepository "github.com/tidehub/workdesk/internal/organization/repository"
	orgservice "github.com/tidehub/workdesk/internal/organization/service"
	"github.com/tidehub/workdesk/internal/providers/email"
	"github.com/tidehub/workdesk/pkg/db"
	"go.uber.org/zap"
)

type env struct {
	dir  directory.Service
	auth authdomain.Service
	orgs orgdomain.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvitation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	logger := zap.NewNop()
	users, sessions := authrepository.New(dbConn)
	authSvc := authservice.New(logger, users, sessions, node)
	orgSvc := orgservice.New(
		dbConn,
		orgrepository.NewRepository(dbConn),
		users,
		node,
		config.NewStaticInvitePolicyHolder(config.DefaultInvitePolicy()),
		email.NewNoop(logger),
		config.Config{InviteURL: "http://localhost:3000/join"},
		logger,
	)

	return &env{dir: New(authSvc, orgSvc), auth: authSvc, orgs: orgSvc}
}

func (e *env) signUp(t *testing.T, address string) (*authdomain.User, string) {
	t.Helper()
	user, err := e.auth.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    address,
		Password: "strong-password",
	})
	require.NoError(t, err)

	result, err := e.auth.Login(context.Background(), authdomain.LoginRequest{
		Email:    address,
		Password: "strong-password",
	})
	require.NoError(t, err)
	return user, result.RawToken
}

func TestSessionResolution(t *testing.T) {
	e := newEnv(t)
	user, token := e.signUp(t, "alice@example.com")

	sess, err := e.dir.Session(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), sess.UserID)
	require.Empty(t, sess.ActiveOrgID)

	_, err = e.dir.Session(context.Background(), "bogus")
	require.ErrorIs(t, err, directory.ErrUnauthenticated)
}

func TestActivateEnforcesMembership(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.signUp(t, "alice@example.com")
	_, malloryToken := e.signUp(t, "mallory@example.com")

	org, err := e.orgs.Create(context.Background(), alice.ID, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	aliceSess, err := e.dir.Session(context.Background(), aliceToken)
	require.NoError(t, err)
	mallorySess, err := e.dir.Session(context.Background(), malloryToken)
	require.NoError(t, err)

	require.NoError(t, e.dir.ActivateOrganization(context.Background(), aliceSess.SessionID, org.ID))

	aliceSess, err = e.dir.Session(context.Background(), aliceToken)
	require.NoError(t, err)
	require.Equal(t, org.ID, aliceSess.ActiveOrgID)

	err = e.dir.ActivateOrganization(context.Background(), mallorySess.SessionID, org.ID)
	require.ErrorIs(t, err, directory.ErrNotMember)

	mallorySess, err = e.dir.Session(context.Background(), malloryToken)
	require.NoError(t, err)
	require.Empty(t, mallorySess.ActiveOrgID)
}

func TestActivateClearsToPersonal(t *testing.T) {
	e := newEnv(t)
	alice, token := e.signUp(t, "alice@example.com")

	org, err := e.orgs.Create(context.Background(), alice.ID, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	sess, err := e.dir.Session(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, e.dir.ActivateOrganization(context.Background(), sess.SessionID, org.ID))
	require.NoError(t, e.dir.ActivateOrganization(context.Background(), sess.SessionID, ""))

	sess, err = e.dir.Session(context.Background(), token)
	require.NoError(t, err)
	require.Empty(t, sess.ActiveOrgID)
}

func TestMembershipsListing(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.signUp(t, "alice@example.com")

	_, err := e.orgs.Create(context.Background(), alice.ID, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	_, err = e.orgs.Create(context.Background(), alice.ID, orgdomain.CreateOrganizationRequest{Name: "Beta"})
	require.NoError(t, err)

	memberships, err := e.dir.Memberships(context.Background(), alice.ID.String())
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	for _, m := range memberships {
		require.Equal(t, orgdomain.RoleAdmin, m.Role)
		require.NotEmpty(t, m.Slug)
	}
}
