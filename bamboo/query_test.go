package bamboo

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPlan(t *testing.T) {
	var gotPath, gotMaxResults string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMaxResults = r.URL.Query().Get("max-results")
		jsonHandler(http.StatusOK, `{"results":{"size":1,"result":[{"key":"PROJ-PLAN-42","state":"Successful"}]}}`)(w, r)
	}))

	env, err := client.QueryPlan(context.Background(), "", "PROJ-PLAN")
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/latest/result/PROJ-PLAN.json", gotPath)
	assert.Equal(t, "10000", gotMaxResults)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusOK, env.StatusCode)

	content, ok := env.Content.(map[string]any)
	require.True(t, ok, "content is %T", env.Content)
	assert.Contains(t, content, "results")
}

func TestQueryPlanFailureNotDecoded(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(http.StatusNotFound, `{not json`))

	env, err := client.QueryPlan(context.Background(), "", "TEST-XXX-YZ")
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
	assert.Equal(t, "{not json", env.Content)
}

func TestQueryPlanMalformedJSON(t *testing.T) {
	tests := map[string]string{
		"html page":        `<html>login</html>`,
		"truncated":        `{"planKey":`,
		"trailing garbage": `{"planKey":"P"}}garbage`,
		"second value":     `{"planKey":"P"} {"planKey":"Q"}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, jsonHandler(http.StatusOK, body))

			env, err := client.QueryPlan(context.Background(), "", "PROJ-PLAN")

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "error is %T", err)
			assert.Contains(t, decodeErr.URL, "/rest/api/latest/result/PROJ-PLAN.json")
			assert.False(t, env.Success)
		})
	}
}

func TestQueryPlanTrailingWhitespaceAccepted(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(http.StatusOK, "{\"planKey\":\"P\"}\n\t "))

	env, err := client.QueryPlan(context.Background(), "", "PROJ-PLAN")
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"planKey": "P"}, env.Content)
}

func TestQueryRequiresPlanKey(t *testing.T) {
	tests := map[string]struct {
		query func(*Client) (Envelope, error)
		want  string
	}{
		"results": {
			query: func(c *Client) (Envelope, error) { return c.QueryPlan(context.Background(), "", "") },
			want:  "Error in <QueryPlan> method: No Bamboo plan key supplied!",
		},
		"details": {
			query: func(c *Client) (Envelope, error) { return c.QueryPlanDetails(context.Background(), "", "") },
			want:  "Error in <QueryPlanDetails> method: No Bamboo plan key supplied!",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			counter := &countingHandler{h: jsonHandler(http.StatusOK, `{}`)}
			client, _ := newTestClient(t, counter)

			env, err := tc.query(client)
			require.NoError(t, err)
			assert.Equal(t, Pack(Content(tc.want)), env)
			assert.Zero(t, counter.Calls())
		})
	}
}

func TestQueryPlanUsesDefaultPlanKey(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		jsonHandler(http.StatusOK, `{}`)(w, r)
	}), WithPlanKey("PROJ-DEFAULT"))

	env, err := client.QueryPlanDetails(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "/rest/api/latest/plan/PROJ-DEFAULT.json", gotPath)
}

func TestQueryPlanExplicitServerWins(t *testing.T) {
	var hit bool
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		jsonHandler(http.StatusOK, `{}`)(w, r)
	}))
	client.SetServerURL("http://127.0.0.1:1")

	env, err := client.QueryPlan(context.Background(), srv.URL, "PROJ-PLAN")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, env.Success)
}

func TestQueryPlanDetails(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		jsonHandler(http.StatusOK, `{"key":"PROJ-PLAN","name":"Main","enabled":true}`)(w, r)
	}))

	env, err := client.QueryPlanDetails(context.Background(), "", "PROJ-PLAN")
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/latest/plan/PROJ-PLAN.json", gotPath)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"key": "PROJ-PLAN", "name": "Main", "enabled": true}, env.Content)
}

func TestQueryQueue(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		jsonHandler(http.StatusOK, `{"queuedBuilds":{"size":0}}`)(w, r)
	}))

	env, err := client.QueryQueue(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/latest/queue.json", gotPath)
	assert.True(t, env.Success)
}

func TestQueryQueueRequiresServer(t *testing.T) {
	client, _ := newTestClient(t, jsonHandler(http.StatusOK, `{}`))
	client.SetServerURL("")

	env, err := client.QueryQueue(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Pack(Content("Error in <QueryQueue> method: No Bamboo server supplied!")), env)
}
