package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welth/internal/amqp"
)

func TestStoreExportEvent(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportEvent(ctx, &amqp.TransactionEvent{
		Kind: amqp.EventCreated, TransactionID: "tx-1", Amount: "3.20",
		Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "mem:1", ref)

	ref, err = s.ExportEvent(ctx, &amqp.TransactionEvent{Kind: amqp.EventDeleted, TransactionID: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, "mem:2", ref)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "created", rows[0][1])
	assert.Equal(t, "2024-05-01", rows[0][7])
	assert.Equal(t, "deleted", rows[1][1])

	_, err = s.ExportEvent(ctx, nil)
	assert.Error(t, err)
}
