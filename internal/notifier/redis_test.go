package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/leasemq/internal/database"
	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/testutil"
)

func TestRedisNotifier_Notify(t *testing.T) {
	t.Run("publishes immediately outside a transaction", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		n := NewRedisNotifier(client, DefaultRedisPrefix, nil)

		mock.ExpectPublish("leasemq:new_message", int64(5)).SetVal(1)

		err := n.Notify(context.Background(), domain.ChannelNewMessage, 5)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns publish error outside a transaction", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		n := NewRedisNotifier(client, DefaultRedisPrefix, nil)

		mock.ExpectPublish("leasemq:dead_message", int64(9)).SetErr(errors.New("connection refused"))

		err := n.Notify(context.Background(), domain.ChannelDeadMessage, 9)
		assert.ErrorContains(t, err, "failed to publish")
	})

	t.Run("defers publish until commit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		n := NewRedisNotifier(client, DefaultRedisPrefix, nil)

		db, sqlMock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		mock.ExpectPublish("leasemq:new_message", int64(6)).SetVal(1)

		err = database.NewTxManager(db).WithTx(context.Background(), func(txCtx context.Context) error {
			require.NoError(t, n.Notify(txCtx, domain.ChannelNewMessage, 6))
			assert.Error(t, mock.ExpectationsWereMet())
			return nil
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestRedisListener_Listen(t *testing.T) {
	client := testutil.SetupRedis(t)
	prefix := "leasemq-test:"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewRedisListener(client, prefix, nil)
	signals, err := listener.Listen(ctx, domain.ChannelNewMessage, domain.ChannelDeadMessage)
	require.NoError(t, err)

	seen := map[domain.Channel]bool{}
	for range 2 {
		signal := receive(t, signals)
		assert.True(t, signal.Reconnected)
		seen[signal.Channel] = true
	}
	assert.True(t, seen[domain.ChannelNewMessage])
	assert.True(t, seen[domain.ChannelDeadMessage])

	n := NewRedisNotifier(client, prefix, nil)
	require.NoError(t, n.Notify(context.Background(), domain.ChannelDeadMessage, 77))

	signal := receive(t, signals)
	assert.Equal(t, domain.Signal{Channel: domain.ChannelDeadMessage, ID: 77}, signal)

	cancel()
	for range signals {
	}
}
