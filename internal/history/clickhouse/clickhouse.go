package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/procmgr/internal/history"
)

// DefaultTable is used when Options.Table is empty.
const DefaultTable = "process_history"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Options selects the ClickHouse server and destination table.
type Options struct {
	Addr     string // host:port of the native protocol
	Database string
	Username string
	Password string
	Table    string
}

// Sink sends events to ClickHouse using the official ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(opts Options) (*Sink, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:9000"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Username == "" {
		opts.Username = "default"
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", opts.Table)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: opts.Table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	err := s.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		type String,
		occurred_at DateTime64(3),
		process_id String,
		name String,
		pid Int32,
		started_at Int64,
		exit_code Int32,
		error Nullable(String)
	) ENGINE = MergeTree()
	ORDER BY (process_id, occurred_at)`)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse table %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, process_id, name, pid, started_at, exit_code, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	var errText *string
	if e.Record.Error != "" {
		msg := e.Record.Error
		errText = &msg
	}
	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt.UTC(),
		e.Record.ProcessID,
		e.Record.Name,
		int32(e.Record.PID),
		e.Record.StartedAt,
		e.Record.ExitCode,
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Recent(ctx context.Context, processID string, limit int) ([]history.Event, error) {
	query := fmt.Sprintf(`SELECT type, occurred_at, process_id, name, pid, started_at, exit_code, error FROM %s WHERE process_id = ? ORDER BY occurred_at DESC LIMIT %d`,
		s.table, history.NormalizeLimit(limit))
	rows, err := s.conn.Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ClickHouse history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []history.Event
	for rows.Next() {
		var (
			typ     string
			pid     int32
			errText *string
			e       history.Event
		)
		if err := rows.Scan(&typ, &e.OccurredAt, &e.Record.ProcessID, &e.Record.Name, &pid,
			&e.Record.StartedAt, &e.Record.ExitCode, &errText); err != nil {
			return nil, err
		}
		e.Type = history.EventType(typ)
		e.OccurredAt = e.OccurredAt.UTC()
		e.Record.PID = int(pid)
		if errText != nil {
			e.Record.Error = *errText
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
