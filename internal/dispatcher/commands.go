// ABOUTME: Built-in slash commands: /start with the main menu keyboard, /help, and the unknown fallback
// ABOUTME: Handlers are pure reply builders registered in the dispatcher's command table

package dispatcher

import (
	"context"

	"github.com/dev2production/d2p-bot/internal/telegram"
)

const welcomeText = "👋 Welcome to Dev2Production!\n\n" +
	"I'm your AI assistant for DevOps, Cloud Architecture, and Custom Software Development.\n\n" +
	"How can I help you today?"

const helpText = "🤖 *Bot Commands*\n\n" +
	"/start - Start conversation\n" +
	"/help - Show this help message\n\n" +
	"*What I can do:*\n" +
	"• Answer questions about DevOps & Cloud\n" +
	"• Help you start a new project\n" +
	"• Connect you with our team\n" +
	"• Provide pricing information"

// MainMenu is the inline keyboard attached to the /start welcome.
func MainMenu() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "🚀 Start a Project", CallbackData: actionPrefix + ActionStartProject}},
			{{Text: "💬 Ask Questions", CallbackData: actionPrefix + ActionAskQuestions}},
			{{Text: "📚 Learn About Services", CallbackData: actionPrefix + ActionServices}},
			{{Text: "👤 Talk to Human", CallbackData: actionPrefix + ActionEscalate}},
		},
	}
}

func registerBuiltinCommands(d *Dispatcher) {
	d.RegisterCommand("/start", handleStart)
	d.RegisterCommand("/help", handleHelp)
}

func handleStart(ctx context.Context, cmd Command) (*Reply, error) {
	return &Reply{Text: welcomeText, Keyboard: MainMenu()}, nil
}

func handleHelp(ctx context.Context, cmd Command) (*Reply, error) {
	return &Reply{Text: helpText, ParseMode: telegram.ParseModeMarkdown}, nil
}

// handleUnknownCommand echoes the literal message text
func handleUnknownCommand(ctx context.Context, cmd Command) (*Reply, error) {
	return &Reply{Text: "Unknown command: " + cmd.Text}, nil
}
