package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// HTTPAnalyzer forwards text to an emotion-analysis HTTP endpoint.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
}

func NewHTTPAnalyzer(url string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, text string) (protocol.Sentiment, error) {
	payload, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return protocol.Sentiment{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return protocol.Sentiment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return protocol.Sentiment{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return protocol.Sentiment{}, fmt.Errorf("sentiment http status %d: %s", res.StatusCode, string(body))
	}

	var out protocol.Sentiment
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return protocol.Sentiment{}, fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Label) == "" {
		out = Neutral()
	}
	return out, nil
}
