package fireflies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/resilience"
)

func TestSearchByTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ff-key", r.Header.Get("Authorization"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "transcripts(title: $title")
		assert.Equal(t, "Acme Mfg", req.Variables["title"])
		assert.InDelta(t, 10, req.Variables["limit"], 0)

		_, _ = w.Write([]byte(`{"data":{"transcripts":[{
			"id":"t1","title":"Acme Mfg intro","date":1760000000000,"duration":32.5,
			"organizer_email":"rep@ourco.com","participants":["john@acme.com"],
			"transcript_url":"https://app.fireflies.ai/view/t1",
			"summary":{"overview":"Discussed welding cell","action_items":"Send quote","keywords":["welding"]}
		}]}}`))
	}))
	defer srv.Close()

	c := NewClient("ff-key", WithBaseURL(srv.URL))
	ts, err := c.SearchByTitle(context.Background(), "Acme Mfg", 10)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "t1", ts[0].ID)
	assert.Equal(t, []string{"john@acme.com"}, ts[0].Participants)
	require.NotNil(t, ts[0].Summary)
	assert.Equal(t, "Send quote", ts[0].Summary.ActionItems)
	assert.Equal(t, time.UnixMilli(1760000000000).UTC(), ts[0].Time())
}

func TestSearchByParticipant_UsesVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "participant_email: $email")
		assert.Equal(t, `o"hara@acme.com`, req.Variables["email"])
		_, _ = w.Write([]byte(`{"data":{"transcripts":[]}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	ts, err := c.SearchByParticipant(context.Background(), `o"hara@acme.com`, 10)
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestTranscripts_GraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"invalid api key"},{"message":"second"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.SearchByTitle(context.Background(), "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key; second")
}

func TestTranscripts_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.SearchByTitle(context.Background(), "x", 10)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestTranscript_ZeroTime(t *testing.T) {
	assert.True(t, Transcript{}.Time().IsZero())
}
