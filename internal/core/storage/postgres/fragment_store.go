package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/lib/pq"
)

// FragmentStore implements storage.FragmentStore. Every Connect opens a
// dedicated single-connection pool owned by the calling rank.
type FragmentStore struct {
	connectTimeout time.Duration
	queryTimeout   time.Duration

	// open is sql.Open by default. Tests swap in sqlmock.
	open func(dsn string) (*sql.DB, error)
}

// NewFragmentStore creates a store. Zero timeouts disable the limit.
func NewFragmentStore(connectTimeout, queryTimeout time.Duration) *FragmentStore {
	return &FragmentStore{
		connectTimeout: connectTimeout,
		queryTimeout:   queryTimeout,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("postgres", dsn)
		},
	}
}

// ShardDSN builds the connection string of a DB instance from its server DSN.
// URL DSNs are converted to key/value form first.
func ShardDSN(shard cube.ShardDescriptor, connectTimeout time.Duration) (string, error) {
	dsn := strings.TrimSpace(shard.DSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return "", xerr.Configuration("shard.dsn", fmt.Sprintf("invalid DSN for dbms %d", shard.DBMSID), err)
		}
		dsn = converted
	}
	parts := []string{dsn}
	if shard.DBName != "" {
		parts = append(parts, "dbname="+quoteDSNValue(shard.DBName))
	}
	if connectTimeout > 0 {
		secs := int(connectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", secs))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (s *FragmentStore) Connect(ctx context.Context, shard cube.ShardDescriptor) (storage.ShardConn, error) {
	dsn, err := ShardDSN(shard, s.connectTimeout)
	if err != nil {
		return nil, err
	}
	db, err := s.open(dsn)
	if err != nil {
		return nil, xerr.IO("shard.connect", fmt.Sprintf("failed to open db instance %d", shard.ID), err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := s.withTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, classify("shard.connect", err, xerr.IO)
	}

	slog.Debug("[Shard] Connected", "db_instance", shard.ID, "db_name", shard.DBName)
	return &shardConn{store: s, shard: shard, db: db}, nil
}

func (s *FragmentStore) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type shardConn struct {
	store *FragmentStore
	shard cube.ShardDescriptor
	db    *sql.DB
}

func (c *shardConn) readBlob(ctx context.Context, op, queryFmt, table string, id int64) ([]byte, error) {
	qctx, cancel := c.store.withTimeout(ctx, c.store.queryTimeout)
	defer cancel()

	var blob []byte
	query := fmt.Sprintf(queryFmt, pq.QuoteIdentifier(table))
	if err := c.db.QueryRowContext(qctx, query, id).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, xerr.NotFound(op, fmt.Sprintf("dimension %d missing from %s", id, table), nil)
		}
		return nil, classify(op, err, xerr.IO)
	}
	return blob, nil
}

func (c *shardConn) ReadDimensionValues(ctx context.Context, indexTable string, fkID int64) ([]byte, error) {
	blob, err := c.readBlob(ctx, "shard.dimension_index", queryDimensionIndexFmt, indexTable, fkID)
	if err != nil {
		return nil, err
	}
	if len(blob)%8 != 0 {
		return nil, xerr.IO("shard.dimension_index",
			fmt.Sprintf("index array of dimension %d has %d bytes, not a multiple of 8", fkID, len(blob)), nil)
	}
	return blob, nil
}

func (c *shardConn) ReadLabelValues(ctx context.Context, labelTable string, fkLabelID int64, t cube.ScalarType, count int64) ([]byte, error) {
	w, err := t.Width()
	if err != nil {
		return nil, err
	}
	blob, err := c.readBlob(ctx, "shard.dimension_label", queryDimensionLabelFmt, labelTable, fkLabelID)
	if err != nil {
		return nil, err
	}
	want := count * int64(w)
	if int64(len(blob)) < want {
		return nil, xerr.IO("shard.dimension_label",
			fmt.Sprintf("label array of dimension %d has %d bytes, want %d", fkLabelID, len(blob), want), nil)
	}
	return blob[:want], nil
}

func (c *shardConn) OpenCursor(ctx context.Context, frag cube.FragmentDescriptor, measureType cube.ScalarType, compressed bool) (storage.RowCursor, error) {
	if _, err := measureType.Width(); err != nil {
		return nil, err
	}
	qctx, cancel := c.store.withTimeout(ctx, c.store.queryTimeout)
	query := fmt.Sprintf(queryFragmentRowsFmt, pq.QuoteIdentifier(frag.Name))
	rows, err := c.db.QueryContext(qctx, query)
	if err != nil {
		cancel()
		return nil, classify("shard.open_cursor", err, xerr.IO)
	}

	cur := &rowCursor{rows: rows, cancel: cancel, fragment: frag.Name}
	if compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			cur.Close()
			return nil, xerr.IO("shard.open_cursor", "failed to create zstd decoder", err)
		}
		cur.dec = dec
	}
	return cur, nil
}

func (c *shardConn) Close() error {
	slog.Debug("[Shard] Closing connection", "db_instance", c.shard.ID)
	return c.db.Close()
}

type rowCursor struct {
	rows     *sql.Rows
	cancel   context.CancelFunc
	dec      *zstd.Decoder
	fragment string
	closed   bool
}

func (r *rowCursor) Next() (storage.Row, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return storage.Row{}, classify("shard.read_rows", err, xerr.IO)
		}
		return storage.Row{}, io.EOF
	}
	var row storage.Row
	if err := r.rows.Scan(&row.Index, &row.Measure); err != nil {
		return storage.Row{}, xerr.IO("shard.read_rows", fmt.Sprintf("failed to scan row of %s", r.fragment), err)
	}
	if r.dec != nil {
		plain, err := r.dec.DecodeAll(row.Measure, nil)
		if err != nil {
			return storage.Row{}, xerr.IO("shard.read_rows",
				fmt.Sprintf("failed to decompress row %d of %s", row.Index, r.fragment), err)
		}
		row.Measure = plain
	}
	return row, nil
}

func (r *rowCursor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	if r.dec != nil {
		r.dec.Close()
	}
	r.cancel()
	return err
}
