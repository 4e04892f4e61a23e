package botctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseBotSendsDurationInSeconds(t *testing.T) {
	var got pauseBody
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.PauseBot(context.Background(), "5511999999999@s.whatsapp.net", 1800, "almoço")
	require.NoError(t, err)

	assert.Equal(t, "/webhook/pausa_bot", path)
	assert.Equal(t, "5511999999999@s.whatsapp.net", got.PhoneNumber)
	require.NotNil(t, got.Duration)
	assert.Equal(t, int64(1800), *got.Duration)
	assert.Equal(t, "almoço", got.Reason)
	assert.Equal(t, "seconds", got.Unit)
}

func TestPauseBotIndefiniteSendsNullDuration(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.PauseBot(context.Background(), "jid", 0, "pausa manual"))

	// The automation layer expects an explicit null for indefinite pauses.
	val, present := raw["duration"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestResumeBot(t *testing.T) {
	var got resumeBody
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.ResumeBot(context.Background(), "jid"))

	assert.Equal(t, "/webhook/inicia_bot", path)
	assert.Equal(t, "jid", got.PhoneNumber)
}

func TestSendMessageWithPause(t *testing.T) {
	var got messageBody
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	pause := int64(900)
	err := c.SendMessage(context.Background(), "5511999999999@s.whatsapp.net", "já estou verificando", "42", &pause)
	require.NoError(t, err)

	assert.Equal(t, "/webhook/envia_mensagem", path)
	assert.Equal(t, "5511999999999@s.whatsapp.net", got.Phone)
	assert.Equal(t, "já estou verificando", got.Message)
	assert.Equal(t, "42", got.AuthUserID)
	require.NotNil(t, got.PauseDuration)
	assert.Equal(t, int64(900), *got.PauseDuration)
}

func TestSendMessageWithoutPauseSendsNull(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.SendMessage(context.Background(), "jid", "olá", "42", nil))

	// An explicit null tells the automation layer to send without pausing.
	val, present := raw["pauseDuration"]
	assert.True(t, present)
	assert.Nil(t, val)
}

func TestNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.PauseBot(context.Background(), "jid", 0, "almoço")
	assert.ErrorContains(t, err, "status 500")
}

func TestUnreachableWebhook(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	err := c.ResumeBot(context.Background(), "jid")
	assert.Error(t, err)
}
