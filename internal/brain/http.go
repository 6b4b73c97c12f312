package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter forwards requests to an AI reply HTTP endpoint.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (a *HTTPAdapter) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return ReplyResponse{}, fmt.Errorf("brain http status %d: %s", res.StatusCode, string(body))
	}

	var out ReplyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return ReplyResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return ReplyResponse{}, fmt.Errorf("brain returned empty reply")
	}
	return out, nil
}
