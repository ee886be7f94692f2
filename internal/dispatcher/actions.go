// ABOUTME: Built-in callback actions behind the main menu buttons
// ABOUTME: Each action replies with a fixed text; the intake and escalation flows are placeholders

package dispatcher

import (
	"context"

	"github.com/dev2production/d2p-bot/internal/telegram"
)

// Action tokens carried in callback data after the "action:" prefix.
const (
	ActionStartProject = "start_project"
	ActionAskQuestions = "ask_questions"
	ActionServices     = "services"
	ActionEscalate     = "escalate"
)

const servicesText = "📚 *Our Services:*\n\n" +
	"• DevOps & CI/CD Pipeline Setup\n" +
	"• Cloud Architecture (AWS, Azure, GCP)\n" +
	"• Kubernetes & Container Orchestration\n" +
	"• Infrastructure as Code\n" +
	"• Custom Software Development\n" +
	"• System Integration\n\n" +
	"Visit: dev2production.tech"

func registerBuiltinActions(d *Dispatcher) {
	d.RegisterAction(ActionStartProject, staticAction(&Reply{
		Text: "📋 Project intake flow coming soon! Please describe your project.",
	}))
	d.RegisterAction(ActionAskQuestions, staticAction(&Reply{
		Text: "💬 Ask me anything about our services!",
	}))
	d.RegisterAction(ActionServices, staticAction(&Reply{
		Text:      servicesText,
		ParseMode: telegram.ParseModeMarkdown,
	}))
	d.RegisterAction(ActionEscalate, staticAction(&Reply{
		Text: "👤 Connecting you to our team... (Feature coming soon!)",
	}))
}

func staticAction(reply *Reply) ActionHandler {
	return func(ctx context.Context, act Action) (*Reply, error) {
		return reply, nil
	}
}
