package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/jmoiron/sqlx"
)

type PostgresAuditRepo struct {
	db *sqlx.DB
}

// NewPostgresAuditRepo creates the audit_logs table on first use.
func NewPostgresAuditRepo(ctx context.Context, db *sqlx.DB) (*PostgresAuditRepo, error) {
	repo := &PostgresAuditRepo{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return repo, nil
}

type auditRow struct {
	ID           string    `db:"id"`
	Service      string    `db:"service"`
	Method       string    `db:"method"`
	Path         string    `db:"path"`
	IP           string    `db:"ip"`
	UserAgent    string    `db:"user_agent"`
	RequestBody  string    `db:"request_body"`
	StatusCode   int       `db:"status_code"`
	ResponseBody string    `db:"response_body"`
	LatencyMs    int64     `db:"latency_ms"`
	Context      []byte    `db:"context"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		contextJSON = []byte("{}")
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (
			id, service, method, path, ip, user_agent,
			request_body, status_code, response_body, latency_ms, context, created_at
		) VALUES (
			:id, :service, :method, :path, :ip, :user_agent,
			:request_body, :status_code, :response_body, :latency_ms, :context, :created_at
		)
		ON CONFLICT (id) DO NOTHING
	`, auditRow{
		ID:           entry.ID,
		Service:      entry.Service,
		Method:       entry.Method,
		Path:         entry.Path,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RequestBody:  entry.RequestBody,
		StatusCode:   entry.StatusCode,
		ResponseBody: entry.ResponseBody,
		LatencyMs:    entry.LatencyMs,
		Context:      contextJSON,
		CreatedAt:    entry.CreatedAt,
	})
	return err
}

func (r *PostgresAuditRepo) List(ctx context.Context, service string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	clauses := []string{}
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if service != "" {
		add("service = $%d", service)
	}
	if from != nil {
		add("created_at >= $%d", *from)
	}
	if to != nil {
		add("created_at <= $%d", *to)
	}

	query := `SELECT id, service, method, path, ip, user_agent, request_body, status_code,
		response_body, latency_ms, context, created_at FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	records := make([]*model.AuditLog, 0, len(rows))
	for _, row := range rows {
		entry := &model.AuditLog{
			ID:           row.ID,
			Service:      row.Service,
			Method:       row.Method,
			Path:         row.Path,
			IP:           row.IP,
			UserAgent:    row.UserAgent,
			RequestBody:  row.RequestBody,
			StatusCode:   row.StatusCode,
			ResponseBody: row.ResponseBody,
			LatencyMs:    row.LatencyMs,
			Context:      map[string]interface{}{},
			CreatedAt:    row.CreatedAt,
		}
		if len(row.Context) > 0 {
			_ = json.Unmarshal(row.Context, &entry.Context)
		}
		records = append(records, entry)
	}
	return records, nil
}

func (r *PostgresAuditRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			service TEXT,
			method TEXT,
			path TEXT,
			ip TEXT,
			user_agent TEXT,
			request_body TEXT,
			status_code INTEGER,
			response_body TEXT,
			latency_ms BIGINT,
			context JSONB,
			created_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_logs_service ON audit_logs(service, created_at DESC)`)
	return nil
}
