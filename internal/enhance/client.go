package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client calls the DeepSeek chat-completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient builds a client. Per-attempt deadlines come from the
// caller's context; the transport-level timeout is only a backstop.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// System prompts per mode. The service is instructed to return only the
// rewritten text so the response maps 1:1 onto the chunk.
var systemPrompts = map[Mode]string{
	ModeGeneral: `You are an expert text editor. Improve the following text by correcting grammar and spelling, improving sentence structure and readability, and enhancing logical flow while maintaining the original meaning and tone. Return only the improved text without explanations.`,
	ModeGrammar: `You are a professional proofreader. Correct all grammar, spelling, and punctuation errors in the following text. Maintain the original structure and meaning. Return only the corrected text.`,
	ModeSemantic: `You are a content optimizer. Enhance the following text by improving clarity and coherence, strengthening logical connections, refining word choices, and ensuring smooth transitions. Return only the optimized text.`,
	ModeTerminology: `You are a terminology specialist. Ensure consistent use of technical terms and standardize terminology throughout the text. Return only the text with unified terminology.`,
}

var lengthHints = map[TargetLength]string{
	LengthShort:  " Keep the result concise; condense where possible.",
	LengthMedium: "",
	LengthLong:   " You may expand for clarity where the original is terse.",
}

var maxTokensByLength = map[TargetLength]int{
	LengthShort:  2000,
	LengthMedium: 4000,
	LengthLong:   6000,
}

// Enhance sends one chunk of text for rewriting. The returned error is
// one of the typed errors in this package, a context error, or a plain
// wrapped failure.
func (c *Client) Enhance(ctx context.Context, text string, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", &InvalidInputError{Message: err.Error()}
	}
	if text == "" {
		return "", nil
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompts[opts.Mode] + lengthHints[opts.TargetLength]},
			{Role: "user", Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokensByLength[opts.TargetLength],
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransientError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransientError{Message: "read response: " + err.Error()}
	}

	if err := classifyStatus(resp, respBody); err != nil {
		return "", err
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("deepseek error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", &TransientError{Message: "empty response"}
	}

	return Sanitize(apiResp.Choices[0].Message.Content), nil
}

// classifyStatus maps HTTP statuses onto the error taxonomy.
func classifyStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: string(body)}
	case resp.StatusCode >= 500:
		return &TransientError{StatusCode: resp.StatusCode, Message: string(body)}
	default:
		return &InvalidInputError{StatusCode: resp.StatusCode, Message: string(body)}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
