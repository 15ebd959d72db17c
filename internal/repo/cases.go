package repo

import (
	"context"
	"database/sql"
	"strings"

	"docflow/internal/domain"
)

const caseColumns = `id,title,description,status_id,department_id,created_by,owner_id,leader_id,due_date,created_at,updated_at`

func scanCase(row rowScanner) (domain.Case, error) {
	var c domain.Case
	var desc, leader, due sql.NullString
	var statusID, dept sql.NullInt64
	err := row.Scan(&c.ID, &c.Title, &desc, &statusID, &dept, &c.CreatedBy, &c.OwnerID, &leader, &due, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Description = desc.String
	c.StatusID = int64Ptr(statusID)
	c.DepartmentID = int64Ptr(dept)
	c.LeaderID = stringPtr(leader)
	c.DueDate = stringPtr(due)
	return c, nil
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO cases(id,title,description,status_id,department_id,created_by,owner_id,leader_id,due_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		c.ID, c.Title, nullable(c.Description), nullableInt64Ptr(c.StatusID), nullableInt64Ptr(c.DepartmentID), c.CreatedBy, c.OwnerID,
		nullableStringPtr(c.LeaderID), nullableStringPtr(c.DueDate), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	return scanCase(r.DB.QueryRowContext(ctx, r.q(`SELECT `+caseColumns+` FROM cases WHERE id=?`), id))
}

// UpdateCaseTx writes mutable columns, guarded by the status the caller read.
func (r Repo) UpdateCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case, expectedStatusID int64) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE cases SET title=?,description=?,status_id=?,department_id=?,owner_id=?,leader_id=?,due_date=?,updated_at=? WHERE id=? AND status_id=?`),
		c.Title, nullable(c.Description), nullableInt64Ptr(c.StatusID), nullableInt64Ptr(c.DepartmentID), c.OwnerID,
		nullableStringPtr(c.LeaderID), nullableStringPtr(c.DueDate), c.UpdatedAt, c.ID, expectedStatusID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r Repo) AddCaseParticipantTx(ctx context.Context, tx *sql.Tx, p domain.CaseParticipant) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO case_participants(case_id,actor_id,role_on_case) VALUES (?,?,?) ON CONFLICT DO NOTHING`),
		p.CaseID, p.ActorID, p.RoleOnCase)
	return err
}

// ReplaceCaseAssigneesTx drops existing assignee rows and inserts actorIDs.
func (r Repo) ReplaceCaseAssigneesTx(ctx context.Context, tx *sql.Tx, caseID string, actorIDs []string) error {
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM case_participants WHERE case_id=? AND role_on_case=?`), caseID, domain.RoleAssignee); err != nil {
		return err
	}
	for _, id := range actorIDs {
		if err := r.AddCaseParticipantTx(ctx, tx, domain.CaseParticipant{CaseID: caseID, ActorID: id, RoleOnCase: domain.RoleAssignee}); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListCaseParticipants(ctx context.Context, caseID string) ([]domain.CaseParticipant, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT case_id,actor_id,role_on_case FROM case_participants WHERE case_id=? ORDER BY role_on_case, actor_id`), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CaseParticipant
	for rows.Next() {
		var p domain.CaseParticipant
		if err := rows.Scan(&p.CaseID, &p.ActorID, &p.RoleOnCase); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListCases returns cases matching an optional SQL predicate over alias c.
func (r Repo) ListCases(ctx context.Context, where string, args ...any) ([]domain.Case, error) {
	query := `SELECT ` + prefixColumns("c", caseColumns) + ` FROM cases c`
	if strings.TrimSpace(where) != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY c.created_at DESC, c.id`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
