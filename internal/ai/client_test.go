package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lveselov/remedy/internal/healing"
)

// chatServer answers every chat completion with the given reply content and
// records the last user prompt.
func chatServer(t *testing.T, reply string) (*Client, *string) {
	t.Helper()
	lastPrompt := new(string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string    `json:"model"`
			Messages []message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		*lastPrompt = req.Messages[1].Content

		fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, mustJSON(reply))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "sk-test", "gpt-4o-mini", 0.2, 5*time.Second), lastPrompt
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestInferSuspectApps(t *testing.T) {
	c, prompt := chatServer(t, `{"applications": ["cart", "checkout"]}`)

	apps, err := c.InferSuspectApps(context.Background(), "some diff", "some log", []string{"cart", "checkout", "auth"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cart", "checkout"}, apps)
	assert.Contains(t, *prompt, "some diff")
	assert.Contains(t, *prompt, "some log")
	assert.Contains(t, *prompt, "auth")
}

func TestInferSuspectFiles(t *testing.T) {
	c, prompt := chatServer(t, `{
		"error_summary": "NPE in cart",
		"cause": "missing null check",
		"resolution_hint": "guard the lookup",
		"files": ["src/cart.py"]
	}`)

	trees := map[string][]healing.TreeEntry{
		"cart": {
			{Path: "src/cart.py", Type: "blob"},
			{Path: "src", Type: "tree"},
		},
	}
	located, err := c.InferSuspectFiles(context.Background(), "diff", trees, "log")
	require.NoError(t, err)
	assert.Equal(t, "NPE in cart", located.ErrorSummary)
	assert.Equal(t, "missing null check", located.Cause)
	assert.Equal(t, "guard the lookup", located.ResolutionHint)
	assert.Equal(t, []string{"src/cart.py"}, located.Files)

	// Only blobs are listed in the prompt; tree entries are structure, not
	// candidate files.
	assert.Contains(t, *prompt, "src/cart.py")
	assert.NotContains(t, *prompt, "  src\n")
}

func TestRequestFix(t *testing.T) {
	c, prompt := chatServer(t, `{"instruction": "add a null check", "explanation": "lookup may return None"}`)

	fix, err := c.RequestFix(context.Background(), "src/cart.py", "def cart(): pass")
	require.NoError(t, err)
	assert.Equal(t, healing.FileFix{
		Path:        "src/cart.py",
		Instruction: "add a null check",
		Explanation: "lookup may return None",
	}, fix)
	assert.Contains(t, *prompt, "def cart(): pass")
}

func TestRequestPatch(t *testing.T) {
	c, _ := chatServer(t, `{"content": "def cart():\n    return None\n", "encoding": "text"}`)

	fix := healing.FileFix{Path: "src/cart.py", Instruction: "add a null check"}
	patched, err := c.RequestPatch(context.Background(), fix, "def cart(): pass")
	require.NoError(t, err)
	assert.Equal(t, "src/cart.py", patched.Path)
	assert.Equal(t, "def cart():\n    return None\n", patched.Content)
	assert.Equal(t, "text", patched.Encoding)
}

func TestRequestPatch_DefaultsEncoding(t *testing.T) {
	c, _ := chatServer(t, `{"content": "patched"}`)

	patched, err := c.RequestPatch(context.Background(), healing.FileFix{Path: "a"}, "orig")
	require.NoError(t, err)
	assert.Equal(t, "text", patched.Encoding)
}

func TestGenerateReport(t *testing.T) {
	c, prompt := chatServer(t, `{
		"title": "Fix NPE in cart",
		"summary": "Added a null check before lookup.",
		"applied_files": ["src/cart.py"],
		"additional_notes": "none"
	}`)

	fixes := []healing.FileFix{{Path: "src/cart.py", Instruction: "add a null check"}}
	report, err := c.GenerateReport(context.Background(), fixes, "rebuild succeeded on remedy/fix-x")
	require.NoError(t, err)
	assert.Equal(t, "Fix NPE in cart", report.Title)
	assert.Equal(t, []string{"src/cart.py"}, report.AppliedFiles)
	assert.Equal(t, "none", report.Notes)
	assert.Contains(t, *prompt, "rebuild succeeded on remedy/fix-x")
}

func TestComplete_UnwrapsCodeFences(t *testing.T) {
	c, _ := chatServer(t, "```json\n{\"applications\": [\"cart\"]}\n```")

	apps, err := c.InferSuspectApps(context.Background(), "d", "l", []string{"cart"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cart"}, apps)
}

func TestComplete_NonJSONReply(t *testing.T) {
	c, _ := chatServer(t, "I think the cart application is the problem.")

	_, err := c.InferSuspectApps(context.Background(), "d", "l", []string{"cart"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse inference reply")
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sk-test", "gpt-4o-mini", 0, 5*time.Second)
	_, err := c.InferSuspectApps(context.Background(), "d", "l", []string{"cart"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestDo_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Each retry must carry the full request body again.
		var req struct {
			Messages []message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"applications\":[\"cart\"]}"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "sk-test", "gpt-4o-mini", 0, 10*time.Second)
	apps, err := c.InferSuspectApps(context.Background(), "d", "l", []string{"cart"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cart"}, apps)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}

func TestClipTail(t *testing.T) {
	short := "small log"
	assert.Equal(t, short, clipTail(short))

	long := strings.Repeat("x", 20000) + "THE END"
	clipped := clipTail(long)
	assert.Less(t, len(clipped), 17000)
	assert.True(t, strings.HasSuffix(clipped, "THE END"))
	assert.True(t, strings.HasPrefix(clipped, "…(truncated)"))
}
