package announce

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	mqtt.Token
	err error
}

func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	topic        string
	payload      []byte
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.topic = topic
	c.payload = payload.([]byte)
	return fakeToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewEvent(at, 3.2, 2)
	b := NewEvent(at, 3.2, 2)
	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAnnounce(t *testing.T) {
	client := &fakeClient{}
	a := newMQTTAnnouncer(client, "puttcup/holes")
	ev := NewEvent(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 3.25, 2)
	ev.Sound = "golf_sounds/cheer.wav"

	require.NoError(t, a.Announce(ev))
	assert.Equal(t, "puttcup/holes", client.topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, ev.ID, got["id"])
	assert.Equal(t, 3.25, got["distance_cm"])
	assert.Equal(t, "2025-06-01T12:00:00Z", got["time"])
	assert.Equal(t, "golf_sounds/cheer.wav", got["sound"])

	a.Close()
	assert.True(t, client.disconnected)
}

func TestAnnounce_PublishError(t *testing.T) {
	a := newMQTTAnnouncer(&fakeClient{err: errors.New("not connected")}, "t")
	assert.ErrorContains(t, a.Announce(NewEvent(time.Now(), 1, 1)), "not connected")
}
