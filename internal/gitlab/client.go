package gitlab

import (
	"bytes"
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

// Client talks to the GitLab v4 REST API. Read calls retry transient
// failures with exponential backoff; mutating calls are issued exactly once.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New creates a Client for the given GitLab instance.
func New(baseURL, token string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

type commitDTO struct {
	ID string `json:"id"`
}

type compareDTO struct {
	Diffs []struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
		Diff    string `json:"diff"`
	} `json:"diffs"`
}

type treeEntryDTO struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type mergeRequestDTO struct {
	WebURL string `json:"web_url"`
}

// CompareLatestChange returns the diff of the most recent change on the
// project's default branch: the comparison between its two latest commits.
func (c *Client) CompareLatestChange(ctx context.Context, gitlabID string) (string, error) {
	var commits []commitDTO
	listURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits?per_page=2",
		c.baseURL, url.PathEscape(gitlabID))
	if _, err := c.getJSON(ctx, listURL, &commits); err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if len(commits) < 2 {
		return "", nil // a single-commit history has no previous change to diff
	}

	var cmp compareDTO
	cmpURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/compare?from=%s&to=%s",
		c.baseURL, url.PathEscape(gitlabID), commits[1].ID, commits[0].ID)
	if _, err := c.getJSON(ctx, cmpURL, &cmp); err != nil {
		return "", fmt.Errorf("compare commits: %w", err)
	}

	var b strings.Builder
	for _, d := range cmp.Diffs {
		fmt.Fprintf(&b, "--- %s\n+++ %s\n%s\n", d.OldPath, d.NewPath, d.Diff)
	}
	return b.String(), nil
}

// GetTree lists the repository tree under path, following x-next-page until
// the listing is exhausted so large recursive trees are not truncated.
func (c *Client) GetTree(ctx context.Context, gitlabID, path string, recursive bool) ([]healing.TreeEntry, error) {
	var entries []healing.TreeEntry
	page := "1"
	for page != "" {
		var dtos []treeEntryDTO
		treeURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/tree?path=%s&recursive=%t&per_page=100&page=%s",
			c.baseURL, url.PathEscape(gitlabID), url.QueryEscape(path), recursive, url.QueryEscape(page))
		next, err := c.getJSON(ctx, treeURL, &dtos)
		if err != nil {
			return nil, fmt.Errorf("get tree %s: %w", path, err)
		}
		for _, d := range dtos {
			entries = append(entries, healing.TreeEntry{Path: d.Path, Type: d.Type})
		}
		page = next
	}
	return entries, nil
}

// GetFile returns the raw content of a file at the given ref.
func (c *Client) GetFile(ctx context.Context, gitlabID, path, ref string) (string, error) {
	fileURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/files/%s/raw?ref=%s",
		c.baseURL, url.PathEscape(gitlabID), url.PathEscape(path), url.QueryEscape(ref))
	body, err := c.getRaw(ctx, fileURL)
	if err != nil {
		return "", fmt.Errorf("get file %s@%s: %w", path, ref, err)
	}
	return body, nil
}

// CreateBranch creates branch from ref.
func (c *Client) CreateBranch(ctx context.Context, gitlabID, branch, ref string) error {
	branchURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/branches?branch=%s&ref=%s",
		c.baseURL, url.PathEscape(gitlabID), url.QueryEscape(branch), url.QueryEscape(ref))
	return c.post(ctx, branchURL, nil, nil)
}

// CommitFile commits full replacement content for one file on branch. The
// encoding tag is forwarded to the commits API, so base64 content is decoded
// server-side instead of landing as literal text.
func (c *Client) CommitFile(ctx context.Context, gitlabID, branch, path, content, encoding, message string) error {
	commitURL := fmt.Sprintf("%s/api/v4/projects/%s/repository/commits",
		c.baseURL, url.PathEscape(gitlabID))
	action := map[string]string{"action": "update", "file_path": path, "content": content}
	if encoding == "base64" {
		action["encoding"] = encoding
	}
	payload := map[string]any{
		"branch":         branch,
		"commit_message": message,
		"actions":        []map[string]string{action},
	}
	return c.post(ctx, commitURL, payload, nil)
}

// CreateMergeRequest opens a merge request and returns its web URL.
func (c *Client) CreateMergeRequest(ctx context.Context, gitlabID, sourceBranch, targetBranch, title string) (string, error) {
	mrURL := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests",
		c.baseURL, url.PathEscape(gitlabID))
	payload := map[string]any{
		"source_branch": sourceBranch,
		"target_branch": targetBranch,
		"title":         title,
	}
	var mr mergeRequestDTO
	if err := c.post(ctx, mrURL, payload, &mr); err != nil {
		return "", err
	}
	return mr.WebURL, nil
}

// getJSON fetches and unmarshals one page, returning the x-next-page header
// value ("" when the listing is exhausted or unpaginated).
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) (string, error) {
	body, next, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return next, json.Unmarshal([]byte(body), out)
}

func (c *Client) getRaw(ctx context.Context, rawURL string) (string, error) {
	body, _, err := c.get(ctx, rawURL)
	return body, err
}

func (c *Client) get(ctx context.Context, rawURL string) (string, string, error) {
	var out, next string

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("PRIVATE-TOKEN", c.token)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("gitlab %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("gitlab %s", resp.Status))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = string(data)
		next = resp.Header.Get("x-next-page")
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", "", err
	}
	return out, next, nil
}

func (c *Client) post(ctx context.Context, rawURL string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gitlab %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
