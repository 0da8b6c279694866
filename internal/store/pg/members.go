package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/workspace"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ workspace.MemberStore = (*Store)(nil)

// Role returns the actor's role in the workspace. Non-members map to
// workspace.ErrNotFound.
func (s *Store) Role(ctx context.Context, workspaceID, userID string) (rbac.Role, error) {
	if s.db == nil {
		return "", errNoDatabase
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `
		select role from workspace_members
		where workspace_id = $1 and user_id = $2
	`, workspaceID, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", workspace.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rbac.ParseRole(raw)
}

func (s *Store) Get(ctx context.Context, workspaceID, userID string) (workspace.Member, error) {
	if s.db == nil {
		return workspace.Member{}, errNoDatabase
	}
	var (
		m   workspace.Member
		raw string
	)
	err := s.db.QueryRowContext(ctx, `
		select workspace_id, user_id, email, role, coalesce(password_hash,''), created_at, updated_at
		from workspace_members
		where workspace_id = $1 and user_id = $2
	`, workspaceID, userID).Scan(&m.WorkspaceID, &m.UserID, &m.Email, &raw, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Member{}, workspace.ErrNotFound
	}
	if err != nil {
		return workspace.Member{}, err
	}
	m.Role, err = rbac.ParseRole(raw)
	if err != nil {
		return workspace.Member{}, err
	}
	return m, nil
}

func (s *Store) List(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	if s.db == nil {
		return nil, errNoDatabase
	}
	rows, err := s.db.QueryContext(ctx, `
		select workspace_id, user_id, email, role, created_at, updated_at
		from workspace_members
		where workspace_id = $1
		order by email
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []workspace.Member
	for rows.Next() {
		var (
			m   workspace.Member
			raw string
		)
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Email, &raw, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if m.Role, err = rbac.ParseRole(raw); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) Add(ctx context.Context, m workspace.Member) error {
	if s.db == nil {
		return errNoDatabase
	}
	_, err := s.db.ExecContext(ctx, `
		insert into workspace_members (workspace_id, user_id, email, role, password_hash, invite_token)
		values ($1, $2, $3, $4, nullif($5,''), nullif($6,''))
	`, m.WorkspaceID, m.UserID, m.Email, m.Role.String(), m.PasswordHash, m.InviteToken)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return workspace.ErrAlreadyExists
			case pgErrForeignKeyViolation:
				return workspace.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, workspaceID, userID string, role rbac.Role) (workspace.Member, error) {
	if s.db == nil {
		return workspace.Member{}, errNoDatabase
	}
	res, err := s.db.ExecContext(ctx, `
		update workspace_members set role = $3, updated_at = now()
		where workspace_id = $1 and user_id = $2
	`, workspaceID, userID, role.String())
	if err != nil {
		return workspace.Member{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return workspace.Member{}, err
	}
	if aff == 0 {
		return workspace.Member{}, workspace.ErrNotFound
	}
	return s.Get(ctx, workspaceID, userID)
}

// AcceptInvite redeems a pending invite token. Clearing the token in the
// same statement that matches on it makes redemption single-use even under
// concurrent attempts.
func (s *Store) AcceptInvite(ctx context.Context, token, passwordHash string) (workspace.Member, error) {
	if s.db == nil {
		return workspace.Member{}, errNoDatabase
	}
	if token == "" {
		return workspace.Member{}, workspace.ErrInvalidInput
	}
	var (
		m   workspace.Member
		raw string
	)
	err := s.db.QueryRowContext(ctx, `
		update workspace_members
		set invite_token = null,
		    password_hash = coalesce(nullif($2,''), password_hash),
		    updated_at = now()
		where invite_token = $1
		returning workspace_id, user_id, email, role, created_at, updated_at
	`, token, passwordHash).Scan(&m.WorkspaceID, &m.UserID, &m.Email, &raw, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Member{}, workspace.ErrNotFound
	}
	if err != nil {
		return workspace.Member{}, err
	}
	m.Role, err = rbac.ParseRole(raw)
	if err != nil {
		return workspace.Member{}, err
	}
	return m, nil
}

func (s *Store) Remove(ctx context.Context, workspaceID, userID string) error {
	if s.db == nil {
		return errNoDatabase
	}
	res, err := s.db.ExecContext(ctx, `
		delete from workspace_members
		where workspace_id = $1 and user_id = $2
	`, workspaceID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return workspace.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
