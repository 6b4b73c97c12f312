package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/transport"
)

// callprobe replays synthetic speech turns against a running server and
// reports per-turn round-trip latency.

type options struct {
	baseURL        string
	callID         string
	token          string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"I need help with my account.",
	"My last invoice looks wrong.",
	"Can you read me the current balance?",
	"Thanks, that answers my question.",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "callprobe: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "callprobe: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	flag.StringVar(&cfg.callID, "call-id", "", "call id to join (generated when empty)")
	flag.StringVar(&cfg.token, "token", "demo-access", "access token for join_demo_call")
	flag.IntVar(&cfg.turns, "turns", 4, "number of speech turns to replay")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 250, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 15000, "timeout waiting for audio_response per turn in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if strings.TrimSpace(cfg.callID) == "" {
		cfg.callID = fmt.Sprintf("probe-%d", time.Now().UnixNano())
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		cfg.texts = splitUtterances(textsRaw)
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func splitUtterances(raw string) []string {
	var texts []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	wsURL, err := wsURLFor(cfg.baseURL)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}

	audioCh := make(chan protocol.AudioResponse, 32)
	endedCh := make(chan string, 1)
	client := transport.NewClient(wsURL, cfg.token, transport.Handlers{
		OnAudio: func(msg protocol.AudioResponse) {
			select {
			case audioCh <- msg:
			default:
			}
		},
		OnCallEnded: func(id string) {
			select {
			case endedCh <- id:
			default:
			}
		},
		OnError: func(err error) {
			if cfg.verbose {
				fmt.Fprintf(os.Stderr, "callprobe: %v\n", err)
			}
		},
	})
	defer client.Disconnect()
	defer func() { _ = endCall(cfg.baseURL, cfg.callID) }()

	if err := client.JoinCall(ctx, cfg.callID); err != nil {
		return fmt.Errorf("join call: %w", err)
	}
	// Scripted simulation turns would pollute the latency numbers, so
	// switch the call to live voice before replaying.
	if err := enableVoice(cfg.baseURL, cfg.callID); err != nil {
		return fmt.Errorf("enable voice: %w", err)
	}
	if cfg.verbose {
		fmt.Printf("callprobe: call=%s turns=%d\n", cfg.callID, cfg.turns)
	}

	var total time.Duration
	var worst time.Duration
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		started := time.Now()
		client.SendVoiceInput(protocol.VoiceInput{
			Transcript: text,
			Confidence: 0.95,
			IsFinal:    true,
		})

		elapsed, err := awaitAudio(audioCh, endedCh, cfg.turnTimeout, started)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		total += elapsed
		if elapsed > worst {
			worst = elapsed
		}
		if cfg.verbose {
			fmt.Printf("callprobe: turn %d/%d text=%q latency=%s\n", i+1, cfg.turns, text, elapsed.Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	fmt.Printf("callprobe: completed turns=%d avg=%s worst=%s\n",
		cfg.turns,
		(total / time.Duration(cfg.turns)).Round(time.Millisecond),
		worst.Round(time.Millisecond),
	)
	return nil
}

func awaitAudio(audioCh <-chan protocol.AudioResponse, endedCh <-chan string, timeout time.Duration, started time.Time) (time.Duration, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-audioCh:
		return time.Since(started), nil
	case id := <-endedCh:
		return 0, fmt.Errorf("call %s ended mid-replay", id)
	case <-timer.C:
		return 0, fmt.Errorf("timeout after %s waiting for audio_response", timeout)
	}
}

func wsURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/demo-calls/ws"
	return u.String(), nil
}

func enableVoice(baseURL, callID string) error {
	res, err := postCall(baseURL, callID, "enable-voice")
	if err != nil {
		return err
	}
	if res != http.StatusOK {
		return fmt.Errorf("unexpected status %d", res)
	}
	return nil
}

func endCall(baseURL, callID string) error {
	_, err := postCall(baseURL, callID, "end")
	return err
}

func postCall(baseURL, callID, action string) (int, error) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/demo-calls/"+url.PathEscape(callID)+"/"+action, nil)
	if err != nil {
		return 0, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, nil
}
