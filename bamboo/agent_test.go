package bamboo

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	nats "github.com/nats-io/go-nats"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newTestAgent(t *testing.T, h http.HandlerFunc) (*Agent, *fakePublisher, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []recordedRequest
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()
		h(w, r)
	}))

	pub := &fakePublisher{}
	agent := NewAgent(AgentConfig{
		ServerURL:   srv.URL,
		Branch:      "master",
		NatsChannel: "bamboo",
	}, client, NewPlanRoutes(map[string]string{"Webhook-Bridge": "WB-MAIN"}), nil)
	agent.pub = pub
	agent.log = zerolog.Nop()
	return agent, pub, &requests
}

func TestAgentPushTriggersMappedPlan(t *testing.T) {
	agent, pub, requests := newTestAgent(t, jsonHandler(http.StatusOK, `{"buildResultKey":"WB-MAIN-7"}`))

	agent.handleMessage(&nats.Msg{
		Subject: "bamboo",
		Reply:   "inbox.1",
		Data:    []byte(`{"ref":"refs/heads/master","after":"abc123","repository":{"name":"webhook-bridge"}}`),
	})

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/rest/api/latest/queue/WB-MAIN.json", req.path)
	assert.Equal(t, map[string]any{
		"stage&executeAllStages": []any{true},
		"bamboo.customRevision":  []any{"abc123"},
	}, req.body)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "inbox.1", pub.msgs[0].subject)
	assert.JSONEq(t, `{"success":true,"status_code":200,"content":{"buildResultKey":"WB-MAIN-7"},"url":"`+agent.client.ServerURL()+`/rest/api/latest/queue/WB-MAIN.json"}`, string(pub.msgs[0].data))
}

func TestAgentPushIgnored(t *testing.T) {
	tests := map[string]string{
		"other branch":    `{"ref":"refs/heads/feature","after":"abc","repository":{"name":"webhook-bridge"}}`,
		"unmapped repo":   `{"ref":"refs/heads/master","after":"abc","repository":{"name":"unknown"}}`,
		"invalid message": `{"hello":"world"}`,
		"not even json":   `ping`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			agent, pub, requests := newTestAgent(t, jsonHandler(http.StatusOK, `{}`))

			agent.handleMessage(&nats.Msg{Subject: "bamboo", Reply: "inbox.1", Data: []byte(data)})

			assert.Empty(t, *requests)
			assert.Empty(t, pub.msgs)
		})
	}
}

func TestAgentCommands(t *testing.T) {
	tests := map[string]struct {
		payload    string
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   map[string]any
	}{
		"trigger with variables": {
			payload:    `{"command":"trigger","plan_key":"WB-MAIN","execute_all_stages":false,"variables":{"driver":"xyz","custom.revision":"deadbeef"}}`,
			wantMethod: http.MethodPost,
			wantPath:   "/rest/api/latest/queue/WB-MAIN.json",
			wantBody: map[string]any{
				"stage&executeAllStages": []any{false},
				"bamboo.driver":          []any{"xyz"},
				"bamboo.customRevision":  []any{"deadbeef"},
			},
		},
		"trigger defaults": {
			payload:    `{"command":"trigger","plan_key":"WB-MAIN"}`,
			wantMethod: http.MethodPost,
			wantPath:   "/rest/api/latest/queue/WB-MAIN.json",
			wantBody:   map[string]any{"stage&executeAllStages": []any{true}},
		},
		"stop": {
			payload:    `{"command":"stop","plan_build_key":"WB-MAIN-7"}`,
			wantMethod: http.MethodPost,
			wantPath:   "/build/admin/stopPlan.action",
			wantQuery:  "planResultKey=WB-MAIN-7",
		},
		"query": {
			payload:    `{"command":"QUERY","plan_key":"WB-MAIN"}`,
			wantMethod: http.MethodGet,
			wantPath:   "/rest/api/latest/result/WB-MAIN.json",
			wantQuery:  "max-results=10000",
		},
		"artifacts": {
			payload:    `{"command":"artifacts","plan_build_key":"WB-MAIN-7","job_name":"JOB1","artifact_names":["logs"]}`,
			wantMethod: http.MethodGet,
			wantPath:   "/browse/WB-MAIN-7/artifact/JOB1/logs/",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			agent, pub, requests := newTestAgent(t, jsonHandler(http.StatusOK, `{}`))

			agent.handleMessage(&nats.Msg{Subject: "bamboo", Reply: "inbox.2", Data: []byte(tc.payload)})

			require.Len(t, *requests, 1)
			req := (*requests)[0]
			assert.Equal(t, tc.wantMethod, req.method)
			assert.Equal(t, tc.wantPath, req.path)
			assert.Equal(t, tc.wantQuery, req.query)
			assert.Equal(t, tc.wantBody, req.body)

			require.Len(t, pub.msgs, 1)
			var reply map[string]any
			require.NoError(t, json.Unmarshal(pub.msgs[0].data, &reply))
			assert.Equal(t, true, reply["success"])
		})
	}
}

func TestAgentUnknownCommandReplies(t *testing.T) {
	agent, pub, requests := newTestAgent(t, jsonHandler(http.StatusOK, `{}`))

	agent.handleMessage(&nats.Msg{Subject: "bamboo", Reply: "inbox.3", Data: []byte(`{"command":"rebuild"}`)})

	assert.Empty(t, *requests)
	require.Len(t, pub.msgs, 1)
	assert.JSONEq(t, `{"success":false,"content":"unknown command \"rebuild\""}`, string(pub.msgs[0].data))
}

func TestAgentNoReplySubject(t *testing.T) {
	agent, pub, requests := newTestAgent(t, jsonHandler(http.StatusOK, `{}`))

	agent.handleMessage(&nats.Msg{Subject: "bamboo", Data: []byte(`{"command":"trigger","plan_key":"WB-MAIN"}`)})

	assert.Len(t, *requests, 1)
	assert.Empty(t, pub.msgs)
}
