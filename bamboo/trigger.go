package bamboo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const (
	executeAllStagesField = "stage&executeAllStages"
	customRevisionKey     = "custom.revision"
	customRevisionField   = "bamboo.customRevision"
	variablePrefix        = "bamboo."
)

// TriggerPlanBuild queues a build of a plan. On success the content is the
// decoded JSON reply of the server.
// TODO: report plan restrictions, like the concurrent build limit, separately from other failures.
func (c *Client) TriggerPlanBuild(ctx context.Context, serverURL, planKey string, opts *TriggerOptions) (Envelope, error) {
	s := c.snapshot()
	serverURL = firstNonEmpty(serverURL, s.serverURL)
	planKey = firstNonEmpty(planKey, s.planKey)

	if env, ok := s.validate("TriggerPlanBuild", serverURL, requirement{"plan key", planKey}); !ok {
		return env, nil
	}

	body, err := json.Marshal(triggerPayload(opts))
	if err != nil {
		return Envelope{}, errors.Wrap(err, "encoding trigger payload")
	}

	url := triggerURL(serverURL, planKey)
	c.traceURL(s, "URL used to trigger build", url)

	resp, err := c.post(ctx, s, url, RequestOptions{Body: body})
	if err != nil {
		return Envelope{}, err
	}
	return packJSON(resp)
}

// triggerPayload builds the form the queue endpoint expects. Every value is a
// single element list.
func triggerPayload(opts *TriggerOptions) map[string][]any {
	payload := map[string][]any{
		executeAllStagesField: {true},
	}
	if opts == nil {
		return payload
	}

	payload[executeAllStagesField] = []any{opts.ExecuteAllStages}
	for key, value := range opts.Variables {
		if strings.EqualFold(key, customRevisionKey) {
			payload[customRevisionField] = []any{value}
			continue
		}
		payload[variablePrefix+key] = []any{value}
	}
	return payload
}
