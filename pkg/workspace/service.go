package workspace

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/db"
	"github.com/askaq/aaq/pkg/user"
)

// Service implements the Identity & Workspace Manager operations named in
// spec §4.1: create_workspace, add_user_to_workspace, set_default_workspace,
// issue_jwt, and the login flows that tie them together.
type Service struct {
	store    *Store
	pool     *pgxpool.Pool
	sessions *auth.SessionManager
	users    *user.Service
}

// NewService creates a workspace Service.
func NewService(store *Store, pool *pgxpool.Pool, sessions *auth.SessionManager, users *user.Service) *Service {
	return &Service{store: store, pool: pool, sessions: sessions, users: users}
}

// CreateResult pairs the created workspace with a freshly issued token when
// the caller had no prior session (first-workspace bootstrap).
type CreateResult struct {
	Workspace Response
	Token     *TokenResponse
}

// Create creates a new workspace and adds actorUserID as its first admin,
// atomically. Fails AlreadyExists on a workspace name clash.
func (s *Service) Create(ctx context.Context, actorUserID uuid.UUID, req CreateRequest) (Response, error) {
	var out Row
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row, err := s.store.Create(ctx, tx, req.Name, req.ContentQuota, req.APIDailyQuota)
		if err != nil {
			return err
		}
		if err := s.store.AddLink(ctx, tx, actorUserID, row.ID, RoleAdmin); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return out.ToResponse(), nil
}

// CreateBootstrap authenticates req's username/password and creates a
// workspace on behalf of that user, then issues a session token scoped to
// it. Used when the caller has no prior session — a brand-new user cannot
// obtain a JWT until they belong to at least one workspace.
func (s *Service) CreateBootstrap(ctx context.Context, req CreateRequest) (CreateResult, error) {
	u, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return CreateResult{}, err
	}

	ws, err := s.Create(ctx, u.ID, req)
	if err != nil {
		return CreateResult{}, err
	}

	tok, err := s.LoginWorkspace(ctx, u.ID, ws.ID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("issuing token after bootstrap: %w", err)
	}

	return CreateResult{Workspace: ws, Token: &tok}, nil
}

// Update patches a workspace's name and/or quota fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Response, error) {
	row, err := s.store.Update(ctx, id, req.Name,
		req.ContentQuota, req.APIDailyQuota,
		req.ContentQuota != nil, req.APIDailyQuota != nil,
	)
	if err != nil {
		return Response{}, fmt.Errorf("updating workspace: %w", err)
	}
	return row.ToResponse(), nil
}

// AddUser links a user to a workspace with the given role. The actor must
// already be an admin of the workspace.
func (s *Service) AddUser(ctx context.Context, actorRole string, workspaceID int64, req AddUserRequest) error {
	if actorRole != RoleAdmin {
		return apperr.New(apperr.Forbidden, "forbidden", "only a workspace admin may add members")
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return apperr.New(apperr.ValidationError, "bad_request", "invalid user_id")
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.store.AddLink(ctx, tx, userID, workspaceID, req.Role)
	})
}

// SetDefault flips the caller's default workspace to workspaceID. The user
// must already be a member.
func (s *Service) SetDefault(ctx context.Context, userID uuid.UUID, workspaceID int64) error {
	if _, err := s.store.GetLink(ctx, userID, workspaceID); err != nil {
		return apperr.New(apperr.Forbidden, "not_a_member", "user is not a member of this workspace")
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return s.store.SetDefault(ctx, tx, userID, workspaceID)
	})
}

// Login authenticates a username/password pair and issues a JWT scoped to
// the user's default workspace.
func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	u, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return TokenResponse{}, err
	}

	link, err := s.store.GetDefaultLink(ctx, u.ID)
	if err != nil {
		return TokenResponse{}, apperr.New(apperr.Forbidden, "no_workspace", "user does not belong to any workspace")
	}

	return s.issueFor(u.ID, link)
}

// LoginWorkspace mints a new token scoped to a specific workspace the
// caller already belongs to, without re-entering credentials.
func (s *Service) LoginWorkspace(ctx context.Context, userID uuid.UUID, workspaceID int64) (TokenResponse, error) {
	link, err := s.store.GetLink(ctx, userID, workspaceID)
	if err != nil {
		return TokenResponse{}, apperr.New(apperr.Forbidden, "not_a_member", "user is not a member of this workspace")
	}
	return s.issueFor(userID, link)
}

func (s *Service) issueFor(userID uuid.UUID, link LinkRow) (TokenResponse, error) {
	token, err := s.sessions.IssueToken(auth.SessionClaims{
		UserID:      userID.String(),
		WorkspaceID: link.WorkspaceID,
		Role:        link.Role,
	})
	if err != nil {
		return TokenResponse{}, fmt.Errorf("issuing token: %w", err)
	}
	return TokenResponse{Token: token, WorkspaceID: link.WorkspaceID, Role: link.Role}, nil
}

