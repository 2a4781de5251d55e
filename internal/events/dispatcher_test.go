package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventCaseCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.CaseID)
		return errors.New("boom")
	})
	d.Subscribe(EventCaseCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.CaseID)
		return nil
	})
	d.Subscribe(EventTaskResolved, func(context.Context, Event) error {
		calls = append(calls, "unrelated")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventCaseCreated, CaseID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first:c1", "second:c1"}, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventDocumentStored}))
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	called := false
	d.Subscribe(EventTaskAssigned, func(context.Context, Event) error { panic("nil map") })
	d.Subscribe(EventTaskAssigned, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTaskAssigned})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_assigned handler panicked")
	assert.True(t, called)
}
