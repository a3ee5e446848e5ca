package briefing

import (
	"fmt"
	"time"

	"github.com/zhouzirui/lifesync/backend/internal/model/chat"
)

// SystemPrefix labels the synthetic user turn carrying the briefing.
const SystemPrefix = "System: "

// Acknowledgement is the synthetic assistant reply to the briefing.
const Acknowledgement = "I understand. I'll help you manage your tasks, finances, notes, and answer other questions with an emphasis on your budget allocation and financial planning. What can I assist you with today?"

// Fallback pair used when no briefing can be built.
const (
	GreetingPrompt = SystemPrefix + "Hello"
	GreetingReply  = "Hello! How can I assist you today?"
)

const assistantTemplate = `You are an intelligent personal assistant in the LifeSync app. You can help with tasks, finance, notes, and general questions.
Today is %s.
%s

IMPORTANT ABILITIES:
1. You can analyze budget allocation and provide financial insights based on actual spending vs. budgeted amounts.
2. You can track the user's expenses by category and suggest ways to optimize spending.
3. You can help with budget planning and financial goal-setting.
4. You remember previous messages in this conversation and can refer back to them as needed.

When discussing finances, remember to differentiate between actual spending and budgeted amounts.

Always be helpful, concise, and friendly in your responses. If you reference data from the user's tasks, finances, or notes, make it clear where that information comes from.`

// SystemPrompt wraps a briefing with the assistant's role description.
func SystemPrompt(briefing string, now time.Time) string {
	return SystemPrefix + fmt.Sprintf(assistantTemplate, now.Format("Monday, January 2, 2006"), briefing)
}

// BootstrapTurns returns the synthetic pair that opens a fresh session.
func BootstrapTurns(briefing string, now time.Time) []chat.Turn {
	return []chat.Turn{
		{Seq: 1, Speaker: chat.SpeakerUser, Text: SystemPrompt(briefing, now), Synthetic: true},
		{Seq: 2, Speaker: chat.SpeakerAssistant, Text: Acknowledgement, Synthetic: true},
	}
}

// GreetingTurns returns the minimal pair used when even the briefing failed.
func GreetingTurns() []chat.Turn {
	return []chat.Turn{
		{Seq: 1, Speaker: chat.SpeakerUser, Text: GreetingPrompt, Synthetic: true},
		{Seq: 2, Speaker: chat.SpeakerAssistant, Text: GreetingReply, Synthetic: true},
	}
}
