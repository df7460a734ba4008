package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultReachesSubmitterOnly(t *testing.T) {
	b := New(64)
	require.NoError(t, b.Start())
	defer func() { _ = b.Stop() }()

	ctx := context.Background()
	sub, subscriber, err := b.SubscribePlayer(ctx, TopicValidationResult, "alice")
	require.NoError(t, err)
	defer func() { _ = b.Unsubscribe(ctx, subscriber) }()

	other, otherID, err := b.SubscribePlayer(ctx, TopicValidationResult, "bob")
	require.NoError(t, err)
	defer func() { _ = b.Unsubscribe(ctx, otherID) }()

	msg := ValidationResult{RequestID: "r1", SubmitterID: "alice", Outcome: "approved"}
	require.NoError(t, b.PublishValidationResult(ctx, msg))

	select {
	case got := <-sub.Out():
		res, ok := got.Data().(ValidationResult)
		require.True(t, ok)
		assert.Equal(t, "r1", res.RequestID)
		assert.Equal(t, "approved", res.Outcome)
	case <-time.After(time.Second):
		t.Fatal("alice never received her result")
	}

	select {
	case <-other.Out():
		t.Fatal("bob received alice's result")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegionBroadcast(t *testing.T) {
	b := New(64)
	require.NoError(t, b.Start())
	defer func() { _ = b.Stop() }()

	ctx := context.Background()
	sub, subscriber, err := b.SubscribeRegion(ctx, "region-7")
	require.NoError(t, err)
	defer func() { _ = b.Unsubscribe(ctx, subscriber) }()

	msg := ValidationAvailable{
		RequestID:  "r2",
		EventType:  "block_place",
		RegionID:   "region-7",
		Validators: []string{"v1", "v2"},
	}
	require.NoError(t, b.PublishValidationAvailable(ctx, msg))

	select {
	case got := <-sub.Out():
		note, ok := got.Data().(ValidationAvailable)
		require.True(t, ok)
		assert.Equal(t, "r2", note.RequestID)
	case <-time.After(time.Second):
		t.Fatal("region subscriber never notified")
	}
}

func TestValidatorTargetedNotification(t *testing.T) {
	b := New(64)
	require.NoError(t, b.Start())
	defer func() { _ = b.Stop() }()

	ctx := context.Background()
	sub, subscriber, err := b.SubscribePlayer(ctx, TopicValidationAvailable, "v2")
	require.NoError(t, err)
	defer func() { _ = b.Unsubscribe(ctx, subscriber) }()

	msg := ValidationAvailable{RequestID: "r3", Validators: []string{"v1", "v2", "v3"}}
	require.NoError(t, b.PublishValidationAvailable(ctx, msg))

	select {
	case got := <-sub.Out():
		note, ok := got.Data().(ValidationAvailable)
		require.True(t, ok)
		assert.Equal(t, "r3", note.RequestID)
	case <-time.After(time.Second):
		t.Fatal("validator never notified")
	}
}
