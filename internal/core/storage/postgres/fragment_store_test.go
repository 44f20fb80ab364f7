package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardDSN(t *testing.T) {
	tests := []struct {
		name    string
		shard   cube.ShardDescriptor
		timeout time.Duration
		want    string
	}{
		{
			name:  "key value dsn",
			shard: cube.ShardDescriptor{DSN: "host=db1 user=cube sslmode=disable", DBName: "cube_1"},
			want:  "host=db1 user=cube sslmode=disable dbname=cube_1",
		},
		{
			name:    "connect timeout rounds up to one second",
			shard:   cube.ShardDescriptor{DSN: "host=db1", DBName: "cube_1"},
			timeout: 200 * time.Millisecond,
			want:    "host=db1 dbname=cube_1 connect_timeout=1",
		},
		{
			name:  "db name with spaces is quoted",
			shard: cube.ShardDescriptor{DSN: "host=db1", DBName: "my cube"},
			want:  "host=db1 dbname='my cube'",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ShardDSN(tc.shard, tc.timeout)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestShardDSN_URL(t *testing.T) {
	got, err := ShardDSN(cube.ShardDescriptor{DSN: "postgres://cube@db1:5432/postgres?sslmode=disable", DBName: "cube_1"}, 0)
	require.NoError(t, err)
	assert.Contains(t, got, "host=db1")
	assert.Contains(t, got, "user=cube")
	// The db instance name is appended after the server DSN and wins.
	assert.Regexp(t, `dbname=cube_1$`, got)

	_, err = ShardDSN(cube.ShardDescriptor{DSN: "postgres://db1:abc/cube"}, 0)
	require.ErrorIs(t, err, xerr.ErrConfiguration)
}

func TestFragmentStore_ReadDimensionValues(t *testing.T) {
	conn, mock := newMockShard(t)

	blob := make([]byte, 16)
	binary.LittleEndian.PutUint64(blob, 3)
	binary.LittleEndian.PutUint64(blob[8:], 4)

	query := fmt.Sprintf(queryDimensionIndexFmt, pq.QuoteIdentifier("dimension_2"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"dimension"}).AddRow(blob))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"dimension"}).AddRow([]byte{1, 2, 3}))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(13)).
		WillReturnRows(sqlmock.NewRows([]string{"dimension"}))

	got, err := conn.ReadDimensionValues(context.Background(), "dimension_2", 11)
	require.NoError(t, err)
	longs, err := cube.DecodeLongs(got)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, longs)

	_, err = conn.ReadDimensionValues(context.Background(), "dimension_2", 12)
	require.ErrorIs(t, err, xerr.ErrIO)

	_, err = conn.ReadDimensionValues(context.Background(), "dimension_2", 13)
	require.ErrorIs(t, err, xerr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFragmentStore_ReadLabelValues(t *testing.T) {
	conn, mock := newMockShard(t)

	query := fmt.Sprintf(queryDimensionLabelFmt, pq.QuoteIdentifier("label_2"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow([]byte{1, 0, 2, 0, 3, 0}))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow([]byte{1, 0}))

	got, err := conn.ReadLabelValues(context.Background(), "label_2", 21, cube.TypeShort, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0}, got)

	_, err = conn.ReadLabelValues(context.Background(), "label_2", 21, cube.TypeShort, 2)
	require.ErrorIs(t, err, xerr.ErrIO)

	_, err = conn.ReadLabelValues(context.Background(), "label_2", 21, cube.TypeInvalid, 2)
	require.ErrorIs(t, err, xerr.ErrUnsupportedType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFragmentStore_Cursor(t *testing.T) {
	conn, mock := newMockShard(t)

	query := fmt.Sprintf(queryFragmentRowsFmt, pq.QuoteIdentifier("fact_1"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(sqlmock.NewRows([]string{"id_dim", "measure"}).
			AddRow(int64(1), []byte{1, 2, 3, 4}).
			AddRow(int64(2), []byte{5, 6, 7, 8}))

	cur, err := conn.OpenCursor(context.Background(), cube.FragmentDescriptor{Name: "fact_1", KeyStart: 1, KeyEnd: 2}, cube.TypeInt, false)
	require.NoError(t, err)
	defer cur.Close()

	row, err := cur.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Index)
	assert.Equal(t, []byte{1, 2, 3, 4}, row.Measure)

	row, err = cur.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.Index)

	_, err = cur.Next()
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFragmentStore_CompressedCursor(t *testing.T) {
	conn, mock := newMockShard(t)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	plain := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	frame := enc.EncodeAll(plain, nil)
	require.NoError(t, enc.Close())

	query := fmt.Sprintf(queryFragmentRowsFmt, pq.QuoteIdentifier("fact_2"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(sqlmock.NewRows([]string{"id_dim", "measure"}).
			AddRow(int64(1), frame).
			AddRow(int64(2), []byte("not zstd")))

	cur, err := conn.OpenCursor(context.Background(), cube.FragmentDescriptor{Name: "fact_2", KeyStart: 1, KeyEnd: 2}, cube.TypeDouble, true)
	require.NoError(t, err)
	defer cur.Close()

	row, err := cur.Next()
	require.NoError(t, err)
	assert.Equal(t, plain, row.Measure)

	_, err = cur.Next()
	require.ErrorIs(t, err, xerr.ErrIO)
}

func TestFragmentStore_CursorQueryFailure(t *testing.T) {
	conn, mock := newMockShard(t)

	query := fmt.Sprintf(queryFragmentRowsFmt, pq.QuoteIdentifier("fact_3"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnError(&pq.Error{Code: "42501"})
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnError(errors.New("server closed the connection unexpectedly"))

	frag := cube.FragmentDescriptor{Name: "fact_3", KeyStart: 1, KeyEnd: 1}
	_, err := conn.OpenCursor(context.Background(), frag, cube.TypeFloat, false)
	require.ErrorIs(t, err, xerr.ErrPermission)

	_, err = conn.OpenCursor(context.Background(), frag, cube.TypeFloat, false)
	require.ErrorIs(t, err, xerr.ErrIO)

	_, err = conn.OpenCursor(context.Background(), frag, cube.TypeInvalid, false)
	require.ErrorIs(t, err, xerr.ErrUnsupportedType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFragmentStore_ConnectFailure(t *testing.T) {
	store := NewFragmentStore(0, 0)
	store.open = func(string) (*sql.DB, error) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))
		mock.ExpectClose()
		return db, nil
	}

	_, err := store.Connect(context.Background(), cube.ShardDescriptor{ID: 1, DSN: "host=db1", DBName: "x"})
	require.ErrorIs(t, err, xerr.ErrIO)
}

func newMockShard(t *testing.T) (*shardConn, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewFragmentStore(time.Second, time.Second)
	var gotDSN string
	store.open = func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	}

	conn, err := store.Connect(context.Background(), cube.ShardDescriptor{ID: 100, DSN: "host=db1", DBName: "cube_1"})
	require.NoError(t, err)
	require.Equal(t, "host=db1 dbname=cube_1 connect_timeout=1", gotDSN)

	t.Cleanup(func() { conn.Close() })
	return conn.(*shardConn), mock
}
