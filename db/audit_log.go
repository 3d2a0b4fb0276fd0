package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
)

type auditLog struct {
	ID        int       `db:"id"`
	LogTime   time.Time `db:"logged_at"`
	SystemLog bool      `db:"system_log"`
	Message   string    `db:"msg"`
	AuthorID  *int      `db:"author_id"`
}

const auditLogCreateQuery = `INSERT INTO audit_logs (
	system_log, msg, author_id
) VALUES (
	$1, $2, $3
) RETURNING id;`

func (s *DB) CreateAuditLog(ctx context.Context, msg string, authorID *int, system bool) (int, error) {
	var id int
	err := s.conn.QueryRow(ctx, auditLogCreateQuery, system, strings.TrimSpace(msg), authorID).Scan(&id)
	return id, err
}

func (s *DB) AuditLogs(ctx context.Context, limit, offset int) ([]*fundnova.AuditLog, error) {
	rows, err := s.conn.Query(ctx, "SELECT * FROM audit_logs ORDER BY logged_at DESC, id DESC "+FormatLimitOffset(limit, offset))
	if errors.Is(err, pgx.ErrNoRows) {
		return []*fundnova.AuditLog{}, nil
	} else if err != nil {
		return nil, err
	}

	logs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[auditLog])
	if err != nil {
		return nil, err
	}

	return mapper(logs, internalToAuditLog), nil
}

func internalToAuditLog(a *auditLog) *fundnova.AuditLog {
	return &fundnova.AuditLog{
		ID:        a.ID,
		LogTime:   a.LogTime,
		SystemLog: a.SystemLog,
		Message:   a.Message,
		AuthorID:  a.AuthorID,
	}
}
