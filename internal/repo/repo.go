package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docflow/internal/db"
	"docflow/internal/domain"
)

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var (
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a conditional status update matched no row.
	ErrStale = errors.New("status changed concurrently")
)

type rowScanner interface {
	Scan(dest ...any) error
}

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

const documentColumns = `id,direction,title,summary,status_id,department_id,created_by,received_number,received_date,sender,received_by,issue_number,issue_year,issued_date,signed_by,signer_position,signing_method,created_at,updated_at`

func scanDocument(row rowScanner) (domain.Document, error) {
	var d domain.Document
	var statusID, departmentID, receivedNumber, issueYear sql.NullInt64
	var summary, receivedDate, sender, receivedBy, issueNumber, issuedDate sql.NullString
	var signedBy, signerPosition, signingMethod sql.NullString
	err := row.Scan(&d.ID, &d.Direction, &d.Title, &summary, &statusID, &departmentID, &d.CreatedBy,
		&receivedNumber, &receivedDate, &sender, &receivedBy, &issueNumber, &issueYear, &issuedDate,
		&signedBy, &signerPosition, &signingMethod, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Summary = summary.String
	d.StatusID = int64Ptr(statusID)
	d.DepartmentID = int64Ptr(departmentID)
	d.ReceivedNumber = int64Ptr(receivedNumber)
	if issueYear.Valid {
		y := int(issueYear.Int64)
		d.IssueYear = &y
	}
	d.ReceivedDate = stringPtr(receivedDate)
	d.Sender = stringPtr(sender)
	d.ReceivedBy = stringPtr(receivedBy)
	d.IssueNumber = stringPtr(issueNumber)
	d.IssuedDate = stringPtr(issuedDate)
	d.SignedBy = stringPtr(signedBy)
	d.SignerPosition = stringPtr(signerPosition)
	d.SigningMethod = stringPtr(signingMethod)
	return d, nil
}

func (r Repo) InsertDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO documents(id,direction,title,summary,status_id,department_id,created_by,received_number,received_date,sender,received_by,issue_number,issue_year,issued_date,signed_by,signer_position,signing_method,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		d.ID, d.Direction, d.Title, nullable(d.Summary), nullableInt64Ptr(d.StatusID), nullableInt64Ptr(d.DepartmentID), d.CreatedBy,
		nullableInt64Ptr(d.ReceivedNumber), nullableStringPtr(d.ReceivedDate), nullableStringPtr(d.Sender), nullableStringPtr(d.ReceivedBy),
		nullableStringPtr(d.IssueNumber), nullableIntPtr(d.IssueYear), nullableStringPtr(d.IssuedDate),
		nullableStringPtr(d.SignedBy), nullableStringPtr(d.SignerPosition), nullableStringPtr(d.SigningMethod), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return scanDocument(r.DB.QueryRowContext(ctx, r.q(`SELECT `+documentColumns+` FROM documents WHERE id=?`), id))
}

// UpdateDocumentTx writes every mutable column, guarded by the status the caller read.
func (r Repo) UpdateDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document, expectedStatusID int64) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE documents SET direction=?,title=?,summary=?,status_id=?,department_id=?,received_number=?,received_date=?,sender=?,received_by=?,issue_number=?,issue_year=?,issued_date=?,signed_by=?,signer_position=?,signing_method=?,updated_at=? WHERE id=? AND status_id=?`),
		d.Direction, d.Title, nullable(d.Summary), nullableInt64Ptr(d.StatusID), nullableInt64Ptr(d.DepartmentID),
		nullableInt64Ptr(d.ReceivedNumber), nullableStringPtr(d.ReceivedDate), nullableStringPtr(d.Sender), nullableStringPtr(d.ReceivedBy),
		nullableStringPtr(d.IssueNumber), nullableIntPtr(d.IssueYear), nullableStringPtr(d.IssuedDate),
		nullableStringPtr(d.SignedBy), nullableStringPtr(d.SignerPosition), nullableStringPtr(d.SigningMethod), d.UpdatedAt,
		d.ID, expectedStatusID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

// ListDocuments returns documents matching an optional SQL predicate over alias d.
func (r Repo) ListDocuments(ctx context.Context, where string, args ...any) ([]domain.Document, error) {
	query := `SELECT ` + prefixColumns("d", documentColumns) + ` FROM documents d`
	if strings.TrimSpace(where) != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY d.created_at DESC, d.id`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) AddDocumentAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.DocumentAssignment) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO document_assignments(document_id,actor_id,role_on_doc,assigned_by,assigned_at,due_at) VALUES (?,?,?,?,?,?) ON CONFLICT DO NOTHING`),
		a.DocumentID, a.ActorID, a.RoleOnDoc, a.AssignedBy, a.AssignedAt, nullableStringPtr(a.DueAt))
	return err
}

func (r Repo) ListDocumentAssignments(ctx context.Context, documentID string) ([]domain.DocumentAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT document_id,actor_id,role_on_doc,assigned_by,assigned_at,due_at FROM document_assignments WHERE document_id=? ORDER BY assigned_at, actor_id`), documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DocumentAssignment
	for rows.Next() {
		var a domain.DocumentAssignment
		var due sql.NullString
		if err := rows.Scan(&a.DocumentID, &a.ActorID, &a.RoleOnDoc, &a.AssignedBy, &a.AssignedAt, &due); err != nil {
			return nil, err
		}
		a.DueAt = stringPtr(due)
		res = append(res, a)
	}
	return res, rows.Err()
}

// IssueNumberTaken reports whether an outgoing document already carries
// number for year.
func (r Repo) IssueNumberTaken(ctx context.Context, year int, number string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT 1 FROM documents WHERE direction=? AND issue_year=? AND issue_number=? LIMIT 1`), domain.DirectionOutgoing, year, number).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// IsAssigneeOf reports whether actorID holds an assignee row on the target.
func (r Repo) IsAssigneeOf(ctx context.Context, actorID string, target domain.Target) (bool, error) {
	var query string
	switch target.Kind {
	case domain.EntityDocument:
		query = `SELECT 1 FROM document_assignments WHERE document_id=? AND actor_id=? AND role_on_doc=? LIMIT 1`
	case domain.EntityCase:
		query = `SELECT 1 FROM case_participants WHERE case_id=? AND actor_id=? AND role_on_case=? LIMIT 1`
	default:
		return false, fmt.Errorf("unknown target kind %q", target.Kind)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(query), target.ID, actorID, domain.RoleAssignee).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ",")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
