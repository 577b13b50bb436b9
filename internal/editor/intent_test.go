package editor

import (
	"testing"

	"pagebuilder/internal/pagedata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIntent(t *testing.T) {
	in, err := DecodeIntent([]byte(`{"type":"update_size","payload":{"id":"sec","childId":"btn","mode":"mobile","width":120}}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateSize, in.Type)
	p, ok := in.Payload.(*SizePayload)
	require.True(t, ok)
	assert.Equal(t, "sec", p.ID)
	assert.Equal(t, "btn", p.ChildID)
	assert.Equal(t, pagedata.Mobile, p.Mode)
	require.NotNil(t, p.Width)
	assert.Equal(t, 120.0, *p.Width)
	assert.Nil(t, p.Height)

	in, err = DecodeIntent([]byte(`{"type":"add_child","payload":{"parentId":"sec","template":"icon"}}`))
	require.NoError(t, err)
	ac := in.Payload.(*AddChildPayload)
	assert.Equal(t, "sec", ac.ParentID)
	assert.Equal(t, "icon", ac.Template)
}

func TestDecodeIntentWithoutPayload(t *testing.T) {
	for _, raw := range []string{`{"type":"undo"}`, `{"type":"toggle_grid","payload":null}`} {
		in, err := DecodeIntent([]byte(raw))
		require.NoError(t, err, raw)
		assert.IsType(t, &NoPayload{}, in.Payload)
	}
}

func TestDecodeIntentErrors(t *testing.T) {
	_, err := DecodeIntent([]byte(`not json`))
	require.Error(t, err)
	assert.False(t, IsValidation(err))

	_, err = DecodeIntent([]byte(`{"type":"teleport"}`))
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `unknown intent "teleport"`)

	_, err = DecodeIntent([]byte(`{"type":"set_zoom","payload":{"zoom":"big"}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, SetZoom, verr.Intent)
	assert.Equal(t, "payload", verr.Fields[0].Field)
}

func TestDecodedIntentAppliesInline(t *testing.T) {
	s := newTestSession(t)
	in, err := DecodeIntent([]byte(`{"type":"add_element","payload":{"element":{
		"id":"cta-btn","type":"button","size":{"width":160,"height":48},"componentData":{"content":"Go","href":"#"}
	}}}`))
	require.NoError(t, err)

	res, err := s.Apply(in)
	require.NoError(t, err)
	btn := res.Document.Find("cta-btn")
	require.NotNil(t, btn)
	assert.Equal(t, pagedata.Size{Width: 160, Height: 48}, btn.Size[pagedata.Desktop])
	assert.Equal(t, "Go", btn.ResponsiveData[pagedata.Desktop]["content"])
	assert.Equal(t, "#", btn.ComponentData["href"])
}

func TestIsUI(t *testing.T) {
	assert.True(t, SetZoom.IsUI())
	assert.True(t, SelectChild.IsUI())
	assert.False(t, SetViewMode.IsUI())
	assert.False(t, Undo.IsUI())
}

func TestPayloadAs(t *testing.T) {
	p, err := payloadAs[IDPayload](Intent{Type: Duplicate, Payload: &IDPayload{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)

	_, err = payloadAs[IDPayload](Intent{Type: Duplicate, Payload: (*IDPayload)(nil)})
	assert.Error(t, err)

	_, err = payloadAs[NoPayload](Intent{Type: Undo})
	assert.NoError(t, err)
}
