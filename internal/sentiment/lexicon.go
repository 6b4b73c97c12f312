package sentiment

import (
	"context"
	"strings"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// LexiconAnalyzer scores text with small keyword lists. It is the local
// fallback when no sentiment service is configured.
type LexiconAnalyzer struct{}

func NewLexiconAnalyzer() *LexiconAnalyzer { return &LexiconAnalyzer{} }

var emotionLexicon = map[string][]string{
	"joy":      {"thanks", "thank", "great", "perfect", "love", "happy", "awesome", "wonderful", "glad"},
	"anger":    {"angry", "furious", "ridiculous", "unacceptable", "terrible", "worst", "hate", "frustrated"},
	"sadness":  {"sad", "disappointed", "unhappy", "sorry", "unfortunately", "upset"},
	"fear":     {"worried", "scared", "afraid", "concerned", "nervous", "anxious"},
	"surprise": {"wow", "really", "unexpected", "surprised", "suddenly"},
}

func (a *LexiconAnalyzer) Analyze(ctx context.Context, text string) (protocol.Sentiment, error) {
	select {
	case <-ctx.Done():
		return protocol.Sentiment{}, ctx.Err()
	default:
	}

	in := strings.ToLower(text)
	counts := map[string]int{}
	total := 0
	for emotion, words := range emotionLexicon {
		for _, w := range words {
			if strings.Contains(in, w) {
				counts[emotion]++
				total++
			}
		}
	}
	if total == 0 {
		return Neutral(), nil
	}

	frac := func(emotion string) float64 {
		return float64(counts[emotion]) / float64(total)
	}
	out := protocol.Sentiment{
		Emotions: protocol.EmotionBreakdown{
			Joy:      frac("joy"),
			Anger:    frac("anger"),
			Sadness:  frac("sadness"),
			Fear:     frac("fear"),
			Surprise: frac("surprise"),
		},
	}

	positive := frac("joy")
	negative := frac("anger") + frac("sadness") + frac("fear")
	switch {
	case positive > negative:
		out.Label = "positive"
		out.Score = 0.5 + positive/2
	case negative > positive:
		out.Label = "negative"
		out.Score = 0.5 - negative/2
	default:
		out.Label = "neutral"
		out.Score = 0.5
	}
	return out, nil
}
