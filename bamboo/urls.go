package bamboo

import (
	"os"
	"strings"
)

// URL templates of the Bamboo endpoints used by the client.
const (
	triggerURLTemplate     = "${server_url}/rest/api/latest/queue/${plan_key}.json"
	stopURLTemplate        = "${server_url}/build/admin/stopPlan.action?planResultKey=${plan_build_key}"
	planResultsURLTemplate = "${server_url}/rest/api/latest/result/${plan_key}.json?max-results=10000"
	planURLTemplate        = "${server_url}/rest/api/latest/plan/${plan_key}.json"
	queueURLTemplate       = "${server_url}/rest/api/latest/queue.json"
	artifactURLTemplate    = "${server_url}/browse/${plan_build_key}/artifact/${job_name}/${artifact_name}/"
)

// expandURL substitutes the named placeholders of a template. Unknown
// placeholders expand to the empty string.
func expandURL(template string, values map[string]string) string {
	if server, ok := values["server_url"]; ok {
		values["server_url"] = strings.TrimRight(server, "/")
	}
	return os.Expand(template, func(name string) string {
		return values[name]
	})
}

func triggerURL(serverURL, planKey string) string {
	return expandURL(triggerURLTemplate, map[string]string{
		"server_url": serverURL,
		"plan_key":   planKey,
	})
}

func stopURL(serverURL, planBuildKey string) string {
	return expandURL(stopURLTemplate, map[string]string{
		"server_url":     serverURL,
		"plan_build_key": planBuildKey,
	})
}

func planResultsURL(serverURL, planKey string) string {
	return expandURL(planResultsURLTemplate, map[string]string{
		"server_url": serverURL,
		"plan_key":   planKey,
	})
}

func planURL(serverURL, planKey string) string {
	return expandURL(planURLTemplate, map[string]string{
		"server_url": serverURL,
		"plan_key":   planKey,
	})
}

func queueURL(serverURL string) string {
	return expandURL(queueURLTemplate, map[string]string{
		"server_url": serverURL,
	})
}

func artifactURL(serverURL, planBuildKey, jobName, artifactName string) string {
	return expandURL(artifactURLTemplate, map[string]string{
		"server_url":     serverURL,
		"plan_build_key": planBuildKey,
		"job_name":       jobName,
		"artifact_name":  artifactName,
	})
}
