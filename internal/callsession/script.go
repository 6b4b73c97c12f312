package callsession

// ScriptLine is one canned exchange used by the timer-driven simulation when
// voice mode is off.
type ScriptLine struct {
	Customer string
	AI       string
}

var scripts = map[string][]ScriptLine{
	"customer-support": {
		{
			Customer: "Hi, I'm having trouble logging into my account.",
			AI:       "I'm sorry to hear that. Let's get you back in. Could you tell me whether you see an error message when you try?",
		},
		{
			Customer: "It says my password is incorrect, but I'm sure it's right.",
			AI:       "Thanks for confirming. I've sent a secure reset link to the email on file. It should arrive within a minute.",
		},
		{
			Customer: "Got it, the reset worked. Thanks for the quick help.",
			AI:       "Wonderful! You're all set. Is there anything else I can help you with today?",
		},
	},
	"sales-outreach": {
		{
			Customer: "I saw your pricing page but I'm not sure which plan fits a ten-person team.",
			AI:       "Great question. For ten seats the Team plan is usually the best fit, and it includes shared call analytics.",
		},
		{
			Customer: "Does that include the voice assistant minutes?",
			AI:       "It includes two thousand assistant minutes per month, and you can add more in blocks whenever you need them.",
		},
	},
}

// Script returns the canned exchanges for a conversation template, falling
// back to customer-support for unknown templates.
func Script(template string) []ScriptLine {
	if lines, ok := scripts[template]; ok {
		return lines
	}
	return scripts["customer-support"]
}
