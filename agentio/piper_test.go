package agentio_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/palagent/palagent/agentio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPiperTTS_Speak(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotText = body["text"]
		_, _ = w.Write([]byte("RIFFfake-wav-data"))
	}))
	t.Cleanup(srv.Close)

	tts, err := agentio.NewPiperTTS(agentio.PiperConfig{},
		agentio.WithBaseURL(srv.URL),
		agentio.WithPlayer("true"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tts.Close() })

	err = tts.Speak(t.Context(), "Hello there")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", gotText)
}

func TestPiperTTS_SynthesisFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	tts, err := agentio.NewPiperTTS(agentio.PiperConfig{},
		agentio.WithBaseURL(srv.URL),
		agentio.WithPlayer("true"),
	)
	require.NoError(t, err)

	err = tts.Speak(t.Context(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesis failed")
}

func TestNoopSpeaker(t *testing.T) {
	var s agentio.Speaker = agentio.NoopSpeaker{}
	assert.NoError(t, s.Speak(t.Context(), "ignored"))
	assert.NoError(t, s.Close())
}
