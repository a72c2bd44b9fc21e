// Package rest implements the directory against a remote directory service
// speaking its JSON API. Requests carry the shared API key; operations acting
// on behalf of a user carry that user's id.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/directory"
	"go.uber.org/zap"
)

const (
	headerAPIKey     = "X-Api-Key"
	headerActingUser = "X-Acting-User"

	defaultTimeout = 10 * time.Second
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a directory client for the remote service named by
// DIRECTORY_BASE_URL.
func New(cfg config.Config, log *zap.Logger) directory.Service {
	return &client{
		baseURL: cfg.DirectoryBaseURL,
		apiKey:  cfg.DirectoryAPIKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.Named("directory.rest"),
	}
}

func (c *client) Session(ctx context.Context, token string) (*directory.Session, error) {
	var out directory.Session
	err := c.do(ctx, http.MethodGet, "/v1/sessions/current", requestOptions{
		bearer: token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Memberships(ctx context.Context, userID string) ([]directory.Membership, error) {
	var out struct {
		Memberships []directory.Membership `json:"memberships"`
	}
	path := fmt.Sprintf("/v1/users/%s/memberships", url.PathEscape(userID))
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &out); err != nil {
		return nil, err
	}
	return out.Memberships, nil
}

func (c *client) ActivateOrganization(ctx context.Context, sessionID string, orgID string) error {
	path := fmt.Sprintf("/v1/sessions/%s/activate", url.PathEscape(sessionID))
	body := map[string]string{"org_id": orgID}
	return c.do(ctx, http.MethodPost, path, requestOptions{body: body}, nil)
}

func (c *client) Organization(ctx context.Context, orgID string) (*directory.Organization, error) {
	var out directory.Organization
	path := fmt.Sprintf("/v1/organizations/%s", url.PathEscape(orgID))
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Members(ctx context.Context, orgID string, query directory.MemberQuery) (*directory.MemberPage, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Query != "" {
		params.Set("query", query.Query)
	}
	for _, role := range query.Roles {
		params.Add("role", role)
	}

	path := fmt.Sprintf("/v1/organizations/%s/members", url.PathEscape(orgID))
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out directory.MemberPage
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) CreateInvitation(ctx context.Context, actorID string, orgID string, req directory.InvitationRequest) (*directory.Invitation, error) {
	var out directory.Invitation
	path := fmt.Sprintf("/v1/organizations/%s/invitations", url.PathEscape(orgID))
	err := c.do(ctx, http.MethodPost, path, requestOptions{
		actingUser: actorID,
		body:       req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) UpdateOrganization(ctx context.Context, actorID string, orgID string, update directory.OrganizationUpdate) (*directory.Organization, error) {
	var out directory.Organization
	path := fmt.Sprintf("/v1/organizations/%s", url.PathEscape(orgID))
	err := c.do(ctx, http.MethodPatch, path, requestOptions{
		actingUser: actorID,
		body:       update,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type requestOptions struct {
	bearer     string
	actingUser string
	body       any
}

func (c *client) do(ctx context.Context, method, path string, opts requestOptions, out any) error {
	var body io.Reader
	if opts.body != nil {
		encoded, err := json.Marshal(opts.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	if opts.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+opts.bearer)
	}
	if opts.actingUser != "" {
		req.Header.Set(headerActingUser, opts.actingUser)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("directory request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", directory.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapStatus(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) mapStatus(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	message := payload.Message
	if message == "" {
		message = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return directory.ErrUnauthenticated
	case http.StatusForbidden:
		return directory.ErrForbidden
	case http.StatusNotFound:
		return directory.ErrNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadRequest:
		if message != "" {
			return fmt.Errorf("%w: %s", directory.ErrInvalidArgument, message)
		}
		return directory.ErrInvalidArgument
	default:
		if message != "" {
			return fmt.Errorf("%w: %s", directory.ErrUnavailable, message)
		}
		return fmt.Errorf("%w: status %d", directory.ErrUnavailable, resp.StatusCode)
	}
}
