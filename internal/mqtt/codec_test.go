package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/model"
)

func TestNewTopics(t *testing.T) {
	topics := NewTopics("home/whereabouts/")
	assert.Equal(t, "home/whereabouts/regions/register", topics.Register)
	assert.Equal(t, "home/whereabouts/regions/remove", topics.Remove)
	assert.Equal(t, "home/whereabouts/regions/status", topics.Status)
	assert.Equal(t, "home/whereabouts/transitions", topics.Transitions)
	assert.Equal(t, "home/whereabouts/location", topics.Location)
	assert.Equal(t, "home/whereabouts/notifications", topics.Notifications)
}

func TestEncodeRegister(t *testing.T) {
	data, err := encodeRegister([]model.RegionRequest{
		model.NewRegionRequest(model.Region{ID: "gl-1", Latitude: 52.5, Longitude: 13.4, Radius: 150}),
	})
	require.NoError(t, err)

	var decoded map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded["regions"], 1)

	region := decoded["regions"][0]
	assert.Equal(t, "gl-1", region["id"])
	assert.Equal(t, 150.0, region["radius"])
	assert.Equal(t, -1.0, region["expiration_ms"])
	assert.Equal(t, 0.0, region["loitering_delay_ms"])
	assert.Equal(t, []any{"ENTER", "EXIT"}, region["transitions"])
	assert.Equal(t, true, region["initial_trigger_enter"])
}

func TestEncodeRemove(t *testing.T) {
	data, err := encodeRemove([]string{"a", "b"}, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["a","b"]}`, string(data))

	data, err = encodeRemove(nil, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"all":true}`, string(data))
}

func TestDecodeTransition(t *testing.T) {
	tests := []struct {
		want    model.TransitionEvent
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "enter",
			payload: `{"transition":"ENTER","region_ids":["a","b"],"timestamp":"2024-02-01T10:00:00Z"}`,
			want: model.TransitionEvent{
				Timestamp:  time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
				Transition: model.TransitionEnter,
				RegionIDs:  []string{"a", "b"},
			},
		},
		{
			name:    "lowercase exit",
			payload: `{"transition":"exit","region_ids":["a"]}`,
			want:    model.TransitionEvent{Transition: model.TransitionExit, RegionIDs: []string{"a"}},
		},
		{
			name:    "host error without transition",
			payload: `{"error_code":1000}`,
			want:    model.TransitionEvent{ErrorCode: 1000},
		},
		{name: "unknown transition", payload: `{"transition":"DWELL","region_ids":["a"]}`, wantErr: true},
		{name: "malformed", payload: `{"transition":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTransition([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFix(t *testing.T) {
	fix, err := DecodeFix([]byte(`{"latitude":52.52,"longitude":13.41,"accuracy":12,"recorded_at":"2024-05-05T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 52.52, fix.Latitude)
	assert.Equal(t, 12.0, fix.Accuracy)
	assert.True(t, fix.RecordedAt.Equal(time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC)))

	fix, err = DecodeFix([]byte(`{"latitude":1,"longitude":2}`))
	require.NoError(t, err)
	assert.False(t, fix.RecordedAt.IsZero(), "missing timestamp defaults to receipt time")

	_, err = DecodeFix([]byte(`{"latitude":95,"longitude":2}`))
	assert.Error(t, err)

	_, err = DecodeFix([]byte(`nope`))
	assert.Error(t, err)
}
