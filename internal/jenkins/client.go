package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lveselov/remedy/internal/healing"
)

// Client talks to the Jenkins REST API using basic auth with an API token.
type Client struct {
	baseURL string
	user    string
	token   string
	hc      *http.Client
}

// New creates a Client for the given Jenkins instance.
func New(baseURL, user, token string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

type buildDTO struct {
	Number   int    `json:"number"`
	Building bool   `json:"building"`
	Result   string `json:"result"`
}

type jobDTO struct {
	NextBuildNumber int `json:"nextBuildNumber"`
}

// LastFailedBuildLog fetches the console text of the job's most recent
// failing build.
func (c *Client) LastFailedBuildLog(ctx context.Context, job string) (string, error) {
	text, err := c.get(ctx, c.jobURL(job)+"/lastFailedBuild/consoleText")
	if err != nil {
		return "", fmt.Errorf("last failed build log for %s: %w", job, err)
	}
	return text, nil
}

// ConsoleLog fetches the console text of a specific build.
func (c *Client) ConsoleLog(ctx context.Context, job string, number int) (string, error) {
	text, err := c.get(ctx, fmt.Sprintf("%s/%d/consoleText", c.jobURL(job), number))
	if err != nil {
		return "", fmt.Errorf("console log for %s #%d: %w", job, number, err)
	}
	return text, nil
}

// TriggerBuild starts a parameterized build of job on branch and returns the
// number the build will run as. Jenkins reports the next build number on the
// job resource, so it is read before the trigger is posted.
func (c *Client) TriggerBuild(ctx context.Context, job, branch string) (int, error) {
	raw, err := c.get(ctx, c.jobURL(job)+"/api/json")
	if err != nil {
		return 0, fmt.Errorf("read job %s: %w", job, err)
	}
	var j jobDTO
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return 0, fmt.Errorf("parse job %s: %w", job, err)
	}

	triggerURL := fmt.Sprintf("%s/buildWithParameters?BRANCH=%s", c.jobURL(job), url.QueryEscape(branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, triggerURL, nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(c.user, c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trigger build %s: %w", job, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("trigger build %s: jenkins %s", job, resp.Status)
	}
	return j.NextBuildNumber, nil
}

// BuildResult reports the current outcome of a build. A build that has not
// started yet (404) and one still running both map to BuildPending.
func (c *Client) BuildResult(ctx context.Context, job string, number int) (healing.BuildResult, error) {
	raw, err := c.get(ctx, fmt.Sprintf("%s/%d/api/json", c.jobURL(job), number))
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return healing.BuildPending, nil
		}
		return healing.BuildPending, err
	}
	var b buildDTO
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return healing.BuildPending, fmt.Errorf("parse build %s #%d: %w", job, number, err)
	}
	if b.Building || b.Result == "" {
		return healing.BuildPending, nil
	}
	if b.Result == "SUCCESS" {
		return healing.BuildSuccess, nil
	}
	return healing.BuildFailure, nil
}

func (c *Client) jobURL(job string) string {
	return c.baseURL + "/job/" + url.PathEscape(job)
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	var out string

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.user, c.token)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("jenkins %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("jenkins %s", resp.Status))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = string(data)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return out, nil
}
