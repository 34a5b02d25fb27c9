package message

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adewale/keyboardia/internal/state"
)

func TestDecode_RoundTrip(t *testing.T) {
	original := &ToggleStep{TrackID: "trk-1", Step: 7}

	data, err := Encode(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"toggle_step"`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecode_EveryVariantRoundTrips(t *testing.T) {
	for _, msgType := range Registry() {
		msgType := msgType
		t.Run(msgType, func(t *testing.T) {
			m := New(msgType)
			require.NotNil(t, m)
			assert.Equal(t, msgType, m.Type())

			data, err := Encode(m)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msgType, decoded.Type())
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"warp_time"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"trackId":"trk-1"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestDecode_Oversized(t *testing.T) {
	huge := fmt.Sprintf(`{"type":"set_scale","scale":%q}`, strings.Repeat("x", state.MaxMessageBytes))
	_, err := Decode([]byte(huge))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEncode_EmptyVariant(t *testing.T) {
	data, err := Encode(&Play{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"play"}`, string(data))
}

func TestEncode_NestedTrack(t *testing.T) {
	tr := state.NewTrack("trk-1", "Kick", "kick-909")
	data, err := Encode(&AddTrack{Track: tr})
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	added, ok := decoded.(*AddTrack)
	require.True(t, ok)
	assert.Equal(t, "trk-1", added.Track.ID)
	assert.Len(t, added.Track.Steps, state.MaxStepsPerTrack)
}

func TestRegistry_SortedAndComplete(t *testing.T) {
	types := Registry()
	assert.True(t, sort.StringsAreSorted(types))
	assert.Len(t, types, 31)
	assert.Contains(t, types, TypeToggleStep)
	assert.Contains(t, types, TypeClockSyncRequest)
}

func TestNew_Unknown(t *testing.T) {
	assert.Nil(t, New("warp_time"))
}

func TestEncodedSize(t *testing.T) {
	m := &SetTempo{Tempo: 128}
	data, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, len(data), EncodedSize(m))
}
