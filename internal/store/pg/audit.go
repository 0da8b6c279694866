package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"opsdesk.dev/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Append inserts one audit record. Insert is the only mutating statement
// this store ever issues against audit_logs: no update, no delete.
func (s *Store) Append(ctx context.Context, rec *audit.Record) error {
	if s.db == nil {
		return errNoDatabase
	}
	oldJSON, err := marshalNullable(rec.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newJSON, err := marshalNullable(rec.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	var changesJSON []byte
	if len(rec.Changes) > 0 {
		changesJSON, err = json.Marshal(rec.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs
			(id, workspace_id, user_id, action, resource_type, resource_id,
			 old_values, new_values, changes, ip_address, user_agent, created_at)
		values ($1, $2, nullif($3,''), $4, $5, nullif($6,''), $7, $8, $9, nullif($10,''), nullif($11,''), $12)
	`, rec.ID, rec.WorkspaceID, rec.UserID, rec.Action, rec.ResourceType, rec.ResourceID,
		oldJSON, newJSON, changesJSON, rec.IPAddress, rec.UserAgent, rec.CreatedAt)
	return err
}

// Query returns matching records for a workspace, newest first.
func (s *Store) Query(ctx context.Context, workspaceID string, f audit.Filter) ([]audit.Record, error) {
	if s.db == nil {
		return nil, errNoDatabase
	}

	where := []string{"workspace_id = $1"}
	args := []any{workspaceID}
	idx := 2
	add := func(clause string, arg any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, arg)
		idx++
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if !f.Start.IsZero() {
		add("created_at >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("created_at <= $%d", f.End)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
		select id, workspace_id, coalesce(user_id,''), action, resource_type, coalesce(resource_id,''),
		       old_values, new_values, changes, coalesce(ip_address,''), coalesce(user_agent,''), created_at
		from audit_logs
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, strings.Join(where, " and "), idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []audit.Record{}
	for rows.Next() {
		var (
			rec                           audit.Record
			oldJSON, newJSON, changesJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.UserID, &rec.Action, &rec.ResourceType, &rec.ResourceID,
			&oldJSON, &newJSON, &changesJSON, &rec.IPAddress, &rec.UserAgent, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &rec.OldValues); err != nil {
				return nil, fmt.Errorf("decode old_values: %w", err)
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &rec.NewValues); err != nil {
				return nil, fmt.Errorf("decode new_values: %w", err)
			}
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &rec.Changes); err != nil {
				return nil, fmt.Errorf("decode changes: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CountInWindow counts trail entries for (workspace, user, action) created
// at or after since.
func (s *Store) CountInWindow(ctx context.Context, workspaceID, userID, action string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, errNoDatabase
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*)
		from audit_logs
		where workspace_id = $1 and user_id = $2 and action = $3 and created_at >= $4
	`, workspaceID, userID, action, since).Scan(&count)
	return count, err
}

func marshalNullable(values map[string]any) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return json.Marshal(values)
}
