package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/inboxtasks/internal/gmail"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClassifier classifies emails through the OpenAI chat completions
// API. Every failure falls back to the rule classifier so the pipeline
// never stalls on a flaky or unconfigured API.
type OpenAIClassifier struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	fallback   *RuleClassifier
}

// OpenAIOption configures an OpenAIClassifier.
type OpenAIOption func(*OpenAIClassifier)

// WithModel overrides the default model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClassifier) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(endpoint string) OpenAIOption {
	return func(c *OpenAIClassifier) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClassifier) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewOpenAIClassifier creates a classifier backed by the OpenAI API.
func NewOpenAIClassifier(apiKey string, opts ...OpenAIOption) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	c := &OpenAIClassifier{
		apiKey:   apiKey,
		model:    "gpt-4o-mini",
		endpoint: defaultOpenAIEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		fallback: NewRuleClassifier(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify asks the model for a classification. On any API, transport or
// parse error the rule classifier's answer is returned instead.
func (c *OpenAIClassifier) Classify(ctx context.Context, email gmail.Email, opts Options) (*Classification, error) {
	prompt := buildPrompt(email, opts)

	raw, err := c.callAPI(ctx, prompt)
	if err != nil {
		return c.fallbackWith(ctx, email, opts, fmt.Sprintf("API error: %v", err))
	}

	result, err := parseResponse(raw)
	if err != nil {
		return c.fallbackWith(ctx, email, opts, fmt.Sprintf("response parsing failed: %v", err))
	}

	result.Engine = EngineOpenAI
	if result.Title == "" {
		result.Title = CleanTitle(email.Subject)
	} else {
		result.Title = strings.TrimSpace(truncateRunes(result.Title, maxTitleLen))
	}
	if result.Notes == "" {
		body := email.Body
		if body == "" {
			body = email.Snippet
		}
		result.Notes = truncateNotes(body)
	} else {
		result.Notes = truncateNotes(result.Notes)
	}

	return result, nil
}

func (c *OpenAIClassifier) fallbackWith(ctx context.Context, email gmail.Email, opts Options, reason string) (*Classification, error) {
	result, _ := c.fallback.Classify(ctx, email, opts)
	result.Reasoning = reason + "; " + result.Reasoning
	return result, nil
}

func buildPrompt(email gmail.Email, opts Options) string {
	var sb strings.Builder

	sb.WriteString("You are an email assistant that decides whether an email should become a task or a meeting. Return JSON only.\n\n")

	writeCategoryBlock(&sb, "Available Task Categories", NormalizeCategories(opts.TaskCategories))
	writeCategoryBlock(&sb, "Available Calendar Categories", NormalizeCategories(opts.CalendarCategories))

	body := email.Body
	if strings.TrimSpace(body) == "" {
		body = email.Snippet
	}
	if len(body) > maxNotesLen {
		body = body[:maxNotesLen] + "..."
	}

	sb.WriteString("Email:\n")
	sb.WriteString("From: " + email.Sender + "\n")
	sb.WriteString("Subject: " + email.Subject + "\n\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")

	sb.WriteString(`Create a task for action items, requests, deadlines, bills, follow-ups and meeting invitations that need preparation. Do not create a task for newsletters, marketing, automated notifications, social media noise, FYI-only messages or auto-replies.

Return a JSON object with this structure:
{
  "should_create": true,
  "confidence": 0.9,
  "title": "Concise task title (3-8 words, under 60 characters, actionable)",
  "notes": "Key details from the email (2-4 sentences)",
  "category": "Exact category name from Available Task Categories, or null",
  "reasoning": "Brief explanation",
  "meeting": {
    "is_meeting": false,
    "summary": "",
    "location": "",
    "start_datetime": "",
    "end_datetime": "",
    "participants": [],
    "category": "Exact category name from Available Calendar Categories, or null"
  }
}

Rules:
- start_datetime and end_datetime are RFC3339 UTC, or empty when unknown
- category fields must use the exact category name as listed, or null
- Return ONLY the JSON, no other text.`)

	return sb.String()
}

func writeCategoryBlock(sb *strings.Builder, heading string, cats []Category) {
	if len(cats) == 0 {
		sb.WriteString(heading + ": None\n\n")
		return
	}
	sb.WriteString(heading + ":\n")
	for _, c := range cats {
		sb.WriteString("  - " + c.Name)
		if c.Description != "" {
			sb.WriteString(": " + c.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClassifier) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful email classification assistant. Always respond with valid JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.3,
		MaxTokens:      500,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	return apiResp.Choices[0].Message.Content, nil
}

// modelResult mirrors the JSON shape the prompt asks the model for.
type modelResult struct {
	ShouldCreate bool    `json:"should_create"`
	Confidence   float64 `json:"confidence"`
	Title        string  `json:"title"`
	Notes        string  `json:"notes"`
	Category     *string `json:"category"`
	Reasoning    string  `json:"reasoning"`
	Meeting      *struct {
		IsMeeting     bool     `json:"is_meeting"`
		Summary       string   `json:"summary"`
		Location      string   `json:"location"`
		StartDatetime string   `json:"start_datetime"`
		EndDatetime   string   `json:"end_datetime"`
		Participants  []string `json:"participants"`
		Category      *string  `json:"category"`
	} `json:"meeting"`
}

func parseResponse(raw string) (*Classification, error) {
	// Strip markdown code fences some models wrap JSON in
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var mr modelResult
	if err := json.Unmarshal([]byte(raw), &mr); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	result := &Classification{
		ShouldCreate: mr.ShouldCreate,
		Confidence:   clamp01(mr.Confidence),
		Title:        strings.TrimSpace(mr.Title),
		Notes:        strings.TrimSpace(mr.Notes),
		Reasoning:    strings.TrimSpace(mr.Reasoning),
	}
	if mr.Category != nil {
		result.Category = strings.TrimSpace(*mr.Category)
	}

	if mr.Meeting != nil && mr.Meeting.IsMeeting {
		meeting := &MeetingInfo{
			Summary:   strings.TrimSpace(mr.Meeting.Summary),
			Location:  strings.TrimSpace(mr.Meeting.Location),
			Attendees: mr.Meeting.Participants,
		}
		if t, err := time.Parse(time.RFC3339, mr.Meeting.StartDatetime); err == nil {
			meeting.Start = t.UTC()
		}
		if t, err := time.Parse(time.RFC3339, mr.Meeting.EndDatetime); err == nil {
			meeting.End = t.UTC()
		}
		if mr.Meeting.Category != nil {
			meeting.Category = strings.TrimSpace(*mr.Meeting.Category)
		}
		if meeting.Summary == "" {
			meeting.Summary = result.Title
		}
		result.Meeting = meeting
	}

	return result, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
