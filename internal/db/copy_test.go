package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sourceColumns = []string{"id", "lead_id", "title", "url"}

func TestCopyRows_EmptyRows(t *testing.T) {
	n, err := CopyRows(context.TODO(), nil, "sources", sourceColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyRows_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sources"}, sourceColumns).WillReturnResult(2)

	rows := [][]any{
		{"s1", "lead-1", "Acme", "https://acme.com"},
		{"s2", "lead-1", "News", "https://news.example/acme"},
	}
	n, err := CopyRows(context.Background(), mock, "sources", sourceColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRows_ShortWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sources"}, sourceColumns).WillReturnResult(1)

	rows := [][]any{{"s1", "l", "a", "b"}, {"s2", "l", "c", "d"}}
	_, err = CopyRows(context.Background(), mock, "sources", sourceColumns, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
}

func TestCopyRows_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sources"}, sourceColumns).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyRows(context.Background(), mock, "sources", sourceColumns, [][]any{{"s1", "l", "a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into sources")
	assert.NoError(t, mock.ExpectationsWereMet())
}
