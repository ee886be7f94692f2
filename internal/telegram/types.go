// ABOUTME: Telegram Bot API wire types for inbound updates and outbound payloads
// ABOUTME: Only the fields d2p-bot reads or sends are modelled

package telegram

// UpdateKind classifies an inbound update.
type UpdateKind int

const (
	KindUnknown UpdateKind = iota
	KindMessage
	KindCallback
)

func (k UpdateKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback_query"
	default:
		return "unknown"
	}
}

// Update is one inbound event delivered to the webhook.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Kind reports whether the update is a chat message, a callback press, or neither.
// An update carrying both is treated as unknown.
func (u *Update) Kind() UpdateKind {
	switch {
	case u.Message != nil && u.CallbackQuery == nil:
		return KindMessage
	case u.CallbackQuery != nil && u.Message == nil:
		return KindCallback
	default:
		return KindUnknown
	}
}

// Message is a chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Date      int64  `json:"date,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Validate checks the fields an inbound user message must carry.
func (m *Message) Validate() error {
	if m.Chat == nil {
		return &ValidationError{Field: "message.chat"}
	}
	if m.From == nil {
		return &ValidationError{Field: "message.from"}
	}
	return nil
}

// User is a Telegram account.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"` // private|group|supergroup|channel
	Username string `json:"username,omitempty"`
}

// CallbackQuery is a press on an inline keyboard button.
type CallbackQuery struct {
	ID           string   `json:"id"`
	From         *User    `json:"from,omitempty"`
	Message      *Message `json:"message,omitempty"`
	ChatInstance string   `json:"chat_instance,omitempty"`
	Data         string   `json:"data,omitempty"`
}

// Validate checks the fields a callback press must carry.
func (q *CallbackQuery) Validate() error {
	if q.ID == "" {
		return &ValidationError{Field: "callback_query.id"}
	}
	if q.Data == "" {
		return &ValidationError{Field: "callback_query.data"}
	}
	if q.Message == nil || q.Message.Chat == nil {
		return &ValidationError{Field: "callback_query.message.chat"}
	}
	return nil
}

// InlineKeyboardMarkup is a keyboard attached below a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Parse modes accepted by sendMessage.
const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// SecretTokenHeader carries the secret_token given to setWebhook on every delivery.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// SendMessageRequest is the payload of sendMessage.
type SendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// AnswerCallbackQueryRequest is the payload of answerCallbackQuery.
type AnswerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

// DefaultAllowedUpdates are the update types the bot subscribes to.
var DefaultAllowedUpdates = []string{"message", "callback_query"}

// SetWebhookRequest is the payload of setWebhook.
type SetWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// WebhookInfo is the result of getWebhookInfo.
type WebhookInfo struct {
	URL                  string   `json:"url"`
	HasCustomCertificate bool     `json:"has_custom_certificate"`
	PendingUpdateCount   int      `json:"pending_update_count"`
	IPAddress            string   `json:"ip_address,omitempty"`
	LastErrorDate        int64    `json:"last_error_date,omitempty"`
	LastErrorMessage     string   `json:"last_error_message,omitempty"`
	MaxConnections       int      `json:"max_connections,omitempty"`
	AllowedUpdates       []string `json:"allowed_updates,omitempty"`
}
