package bamboo

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// placeholderAnchor is the link Bamboo renders on its "page not found" page.
const placeholderAnchor = "Site homepage"

// QueryJobForArtifacts looks up the artifact pages of a job and collects every
// file they link to. Names that cannot be resolved are skipped; when none of
// them resolve the envelope has Success false and StatusCode
// StatusAllArtifactsMissing, with an empty artifact index.
// TODO: descend into artifact sub directories.
func (c *Client) QueryJobForArtifacts(ctx context.Context, q ArtifactQuery) (Envelope, error) {
	s := c.snapshot()
	serverURL := firstNonEmpty(q.ServerURL, s.serverURL)

	if env, ok := s.validate("QueryJobForArtifacts", serverURL, requirement{"plan build key", q.PlanBuildKey}); !ok {
		return env, nil
	}

	index := ArtifactIndex{}
	failed := 0
	for _, name := range q.ArtifactNames {
		pageURL := artifactURL(serverURL, q.PlanBuildKey, q.JobName, name)
		c.traceURL(s, "URL used to query for artifacts", pageURL)

		resp, err := c.get(ctx, s, pageURL, RequestOptions{})
		if err != nil {
			return Envelope{}, err
		}
		if resp.StatusCode != http.StatusOK {
			c.log.Debug().Str("artifact", name).Int("status", resp.StatusCode).Msg("Artifact page not available")
			failed++
			continue
		}

		if err := collectArtifacts(index, serverURL, resp.Body); err != nil {
			return Envelope{}, &UnknownError{URL: pageURL, Err: err}
		}
	}

	if failed == len(q.ArtifactNames) {
		return Pack(
			Success(false),
			StatusCode(StatusAllArtifactsMissing),
			Artifacts(index),
		), nil
	}
	return Pack(
		Success(true),
		StatusCode(http.StatusOK),
		Artifacts(index),
	), nil
}

// collectArtifacts adds every anchor of an artifact listing page to index,
// keyed by its visible text.
func collectArtifacts(index ArtifactIndex, serverURL string, page []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return errors.WithMessage(err, "parsing artifact page")
	}

	base := strings.TrimRight(serverURL, "/")
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		if name == placeholderAnchor {
			return
		}
		href, _ := a.Attr("href")
		index[name] = absoluteURL(base, href)
	})
	return nil
}

func absoluteURL(base, href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}

// GetArtifact downloads an artifact and writes it to destination, replacing
// any existing file. The body is fetched once and written as received.
func (c *Client) GetArtifact(ctx context.Context, downloadURL, destination string) (Envelope, error) {
	if downloadURL == "" {
		return preconditionFailed("Error in <GetArtifact> method: No artifact URL supplied!"), nil
	}
	if destination == "" {
		return preconditionFailed("Error in <GetArtifact> method: No destination file supplied!"), nil
	}

	s := c.snapshot()
	if env, ok := s.validateAuth("GetArtifact"); !ok {
		return env, nil
	}

	c.traceURL(s, "URL used to download artifact", downloadURL)

	resp, err := c.get(ctx, s, downloadURL, RequestOptions{})
	if err != nil {
		return Envelope{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return packFailure(resp), nil
	}

	if err := os.WriteFile(destination, resp.Body, 0o644); err != nil {
		return Envelope{}, &UnknownError{URL: downloadURL, Err: errors.Wrapf(err, "writing artifact to %s", destination)}
	}

	return Pack(
		Success(true),
		StatusCode(resp.StatusCode),
		URL(downloadURL),
	), nil
}
