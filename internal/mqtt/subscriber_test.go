package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/location"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/testutil"
)

var topics = NewTopics("whereabouts")

func newPipeline(t *testing.T) (*testutil.TestDB, *fakeTransport, *geofence.Receiver, *location.MemoryFixStore) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	transport := newFakeTransport()

	handler := geofence.NewTransitionHandler(
		db.Storage,
		geofence.NewUsageUpdater(db.Storage, geofence.RecencyCurrentUse),
		geofence.NewStatisticsUpdater(db.Storage),
		NewNotifier(transport, topics, 1),
	)
	receiver := geofence.NewReceiver(handler)
	fixes := location.NewMemoryFixStore()

	sub := NewSubscriber(transport, topics, 1, receiver, fixes)
	require.NoError(t, sub.Start())
	t.Cleanup(func() { _ = sub.Stop() })
	return db, transport, receiver, fixes
}

func TestSubscriber_TransitionAckedAfterProcessing(t *testing.T) {
	db, transport, receiver, _ := newPipeline(t)
	place, gl := db.AddPlace(testutil.Alexanderplatz, nil)
	tg := db.AttachTask("Buy flowers", gl, true)

	payload, err := json.Marshal(map[string]any{
		"transition": "ENTER",
		"region_ids": []string{gl.ID},
	})
	require.NoError(t, err)

	acks := transport.deliver(topics.Transitions, payload)
	receiver.Wait()

	assert.Equal(t, int32(1), acks.Load())
	assert.Equal(t, model.InsideGeofence, db.MustGetTaskGeofence(tg.TaskID).LastCheckResult)

	var reminders []model.Reminder
	for _, p := range transport.Published() {
		if p.topic == topics.Notifications {
			var r model.Reminder
			require.NoError(t, json.Unmarshal(p.payload, &r))
			reminders = append(reminders, r)
		}
	}
	require.Len(t, reminders, 1)
	assert.Equal(t, "Buy flowers", reminders[0].TaskTitle)
	assert.Equal(t, place.Name, reminders[0].LocationName)
}

func TestSubscriber_MalformedTransitionAcked(t *testing.T) {
	_, transport, receiver, _ := newPipeline(t)

	acks := transport.deliver(topics.Transitions, []byte(`{"transition":`))
	receiver.Wait()
	assert.Equal(t, int32(1), acks.Load())
}

func TestSubscriber_StoresFixes(t *testing.T) {
	_, transport, _, fixes := newPipeline(t)

	acks := transport.deliver(topics.Location, []byte(`{"latitude":52.5,"longitude":13.4,"accuracy":9}`))
	assert.Equal(t, int32(1), acks.Load())

	fix, err := fixes.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 52.5, fix.Latitude)
	assert.Equal(t, 9.0, fix.Accuracy)

	acks = transport.deliver(topics.Location, []byte(`{"latitude":500}`))
	assert.Equal(t, int32(1), acks.Load())
}

func TestSubscriber_StatusAcked(t *testing.T) {
	_, transport, _, _ := newPipeline(t)

	acks := transport.deliver(topics.Status, []byte(`{"command":"add","ok":false,"error":"GEOFENCE_NOT_AVAILABLE"}`))
	assert.Equal(t, int32(1), acks.Load())
}

func TestSubscriber_Stop(t *testing.T) {
	transport := newFakeTransport()
	sub := NewSubscriber(transport, topics, 1, geofence.NewReceiver(nil), nil)
	require.NoError(t, sub.Start())
	require.NoError(t, sub.Stop())

	assert.ElementsMatch(t, []string{topics.Transitions, topics.Status}, transport.unsubscribed)
}

func TestRegistrar_DrivenByManager(t *testing.T) {
	transport := newFakeTransport()
	registrar := NewRegistrar(transport, topics, 1)
	manager := geofence.NewManager(registrar, geofence.PermissionSet{FineLocation: true, Version: 34}, nil)
	ctx := context.Background()

	require.NoError(t, manager.RegisterGeofence(ctx, "gl-1", 52.5, 13.4, 120))
	require.NoError(t, manager.RemoveGeofences(ctx, []string{"gl-2"}))
	require.NoError(t, manager.RemoveAllGeofences(ctx))

	published := transport.Published()
	require.Len(t, published, 3)
	assert.Equal(t, topics.Register, published[0].topic)
	assert.Equal(t, byte(1), published[0].qos)
	assert.Contains(t, string(published[0].payload), `"id":"gl-1"`)
	assert.Equal(t, topics.Remove, published[1].topic)
	assert.JSONEq(t, `{"ids":["gl-2"]}`, string(published[1].payload))
	assert.JSONEq(t, `{"all":true}`, string(published[2].payload))
}

func TestRegistrar_PublishFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.publishErr = errors.New("not connected")
	manager := geofence.NewManager(NewRegistrar(transport, topics, 1), geofence.PermissionSet{FineLocation: true}, nil)

	err := manager.RegisterGeofence(context.Background(), "gl-1", 1, 1, 100)
	require.ErrorIs(t, err, common.ErrRegistrationFailed)
}

func TestRegistrar_CanceledContext(t *testing.T) {
	transport := newFakeTransport()
	registrar := NewRegistrar(transport, topics, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, registrar.RemoveAllRegions(ctx), context.Canceled)
	assert.Empty(t, transport.Published())
}
