package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lveselov/remedy/internal/healing"
)

// Client implements healing.Delegate against an OpenAI-compatible chat API.
// Each of the four pipeline operations is one chat completion whose reply is
// required to be a single JSON object.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	hc          *http.Client
}

// New creates a Client.
func New(baseURL, apiKey, model string, temperature float32, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		hc:          &http.Client{Timeout: timeout},
	}
}

const systemPrompt = "You are a CI/CD repair assistant. Reply with exactly one JSON object and nothing else."

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InferSuspectApps asks which deployed applications likely caused the failure.
func (c *Client) InferSuspectApps(ctx context.Context, diff, buildLog string, applications []string) ([]string, error) {
	prompt, err := Render(suspectAppsTemplate, Vars{
		"applications": strings.Join(applications, "\n"),
		"diff":         diff,
		"build_log":    clipTail(buildLog),
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Applications []string `json:"applications"`
	}
	if err := c.complete(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("infer suspect applications: %w", err)
	}
	return out.Applications, nil
}

// InferSuspectFiles asks for failure localization down to file paths.
func (c *Client) InferSuspectFiles(ctx context.Context, diff string, trees map[string][]healing.TreeEntry, buildLog string) (*healing.SuspectFilesResult, error) {
	prompt, err := Render(suspectFilesTemplate, Vars{
		"diff":      diff,
		"trees":     renderTrees(trees),
		"build_log": clipTail(buildLog),
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		ErrorSummary   string   `json:"error_summary"`
		Cause          string   `json:"cause"`
		ResolutionHint string   `json:"resolution_hint"`
		Files          []string `json:"files"`
	}
	if err := c.complete(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("infer suspect files: %w", err)
	}
	return &healing.SuspectFilesResult{
		ErrorSummary:   out.ErrorSummary,
		Cause:          out.Cause,
		ResolutionHint: out.ResolutionHint,
		Files:          out.Files,
	}, nil
}

// RequestFix asks for a natural-language fix instruction for one file.
func (c *Client) RequestFix(ctx context.Context, path, originalCode string) (healing.FileFix, error) {
	prompt, err := Render(fixInstructionTemplate, Vars{"path": path, "original": originalCode})
	if err != nil {
		return healing.FileFix{}, err
	}

	var out struct {
		Instruction string `json:"instruction"`
		Explanation string `json:"explanation"`
	}
	if err := c.complete(ctx, prompt, &out); err != nil {
		return healing.FileFix{}, fmt.Errorf("request fix for %s: %w", path, err)
	}
	return healing.FileFix{Path: path, Instruction: out.Instruction, Explanation: out.Explanation}, nil
}

// RequestPatch asks for the full patched file content implementing a fix.
func (c *Client) RequestPatch(ctx context.Context, fix healing.FileFix, originalCode string) (healing.PatchedFile, error) {
	prompt, err := Render(patchTemplate, Vars{
		"path":        fix.Path,
		"original":    originalCode,
		"instruction": fix.Instruction,
	})
	if err != nil {
		return healing.PatchedFile{}, err
	}

	var out struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.complete(ctx, prompt, &out); err != nil {
		return healing.PatchedFile{}, fmt.Errorf("request patch for %s: %w", fix.Path, err)
	}
	if out.Encoding == "" {
		out.Encoding = "text"
	}
	return healing.PatchedFile{Path: fix.Path, Content: out.Content, Encoding: out.Encoding}, nil
}

// GenerateReport asks for a human-readable report of the attempt.
func (c *Client) GenerateReport(ctx context.Context, fixes []healing.FileFix, resolutionSummary string) (*healing.Report, error) {
	var b strings.Builder
	for _, f := range fixes {
		fmt.Fprintf(&b, "- %s: %s\n", f.Path, f.Instruction)
	}
	prompt, err := Render(reportTemplate, Vars{"fixes": b.String(), "resolution": resolutionSummary})
	if err != nil {
		return nil, err
	}

	var out struct {
		Title           string   `json:"title"`
		Summary         string   `json:"summary"`
		AppliedFiles    []string `json:"applied_files"`
		AdditionalNotes string   `json:"additional_notes"`
	}
	if err := c.complete(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	return &healing.Report{
		Title:        out.Title,
		Summary:      out.Summary,
		AppliedFiles: out.AppliedFiles,
		Notes:        out.AdditionalNotes,
	}, nil
}

// complete runs one chat completion and unmarshals the JSON reply into out.
func (c *Client) complete(ctx context.Context, prompt string, out any) error {
	reqBody := map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"messages": []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("inference http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Choices) == 0 {
		return fmt.Errorf("inference reply has no choices")
	}

	content := stripFences(envelope.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parse inference reply: %w", err)
	}
	return nil
}

// do retries the request on 429/5xx. The body is fully buffered by callers,
// so the request can be reissued as is.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	wait := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		resp, err = c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode/100 != 5 {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
		wait *= 2
		if req.GetBody != nil {
			if body, berr := req.GetBody(); berr == nil {
				req.Body = body
			}
		}
	}
	return c.hc.Do(req)
}

// stripFences unwraps a reply the model wrapped in a markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// clipTail keeps the tail of a long console log; failures show up at the end.
func clipTail(s string) string {
	const max = 16000
	if len(s) <= max {
		return s
	}
	return "…(truncated)\n" + s[len(s)-max:]
}

func renderTrees(trees map[string][]healing.TreeEntry) string {
	var b strings.Builder
	for app, entries := range trees {
		fmt.Fprintf(&b, "%s:\n", app)
		for _, e := range entries {
			if e.Type == "blob" {
				fmt.Fprintf(&b, "  %s\n", e.Path)
			}
		}
	}
	return b.String()
}
