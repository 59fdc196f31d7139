// Package ch provides a clickhouse client over clickhouse-go
package ch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL  string
	Role string
	Tag  string
}

// Rows is the clickhouse result set
type Rows = driver.Rows

// CH wraps a native clickhouse connection
type CH struct {
	conn driver.Conn
}

var openConn = clickhouse.Open

// Open parses the DSN, connects and pings
func Open(ctx context.Context, cfg Config) (*CH, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ch: empty url")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, cfg.Tag)

	conn, err := openConn(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows to table as one native batch
func (c *CH) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	q := "INSERT INTO " + table
	if len(columns) > 0 {
		q += " (" + strings.Join(columns, ", ") + ")"
	}
	batch, err := c.conn.PrepareBatch(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Query runs a query and returns the driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

// Exec runs a statement without results
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	return c.conn.Exec(ctx, sql, args...)
}

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close closes the connection
func (c *CH) Close() error { return c.conn.Close() }
