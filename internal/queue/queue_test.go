package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
)

func TestEventRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	n := model.Notification{ID: "n1", UserID: "u1", Title: "Hi", Body: "b", Type: model.NotifyClassReminder, CreatedAt: at}

	got, err := EventFrom(n).Notification()
	require.NoError(t, err)
	assert.Equal(t, n, got)

	_, err = NotificationEvent{ID: "n2", Title: "no user"}.Notification()
	assert.Error(t, err)
}

func TestConsumer_HandleMessage(t *testing.T) {
	store := repository.NewMemory()
	require.NoError(t, store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateUser(ctx, model.User{ID: "u1", Email: "u1@studio.test", Role: model.RoleStudent, IsActive: true})
	}))
	c := NewConsumer("amqp://unused", "notifications.dispatch", store, nil)

	body, err := json.Marshal(NotificationEvent{ID: "n1", UserID: "u1", Title: "Booked", Body: "See you", OccurredAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, c.handleMessage(context.Background(), body))
	require.NoError(t, c.handleMessage(context.Background(), body), "redelivery is a no-op")

	list, err := store.ListNotifications(context.Background(), "u1", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotifyGeneral, list[0].Type)

	assert.ErrorIs(t, c.handleMessage(context.Background(), []byte("{")), errMalformed)
	assert.ErrorIs(t, c.handleMessage(context.Background(), []byte(`{"id":"x"}`)), errMalformed)
}
