package i18n

// loadEnglishMessages loads the English catalog. Conversational texts the
// assistant appends to the log (greeting, rejection, failure) are not here:
// those are fixed protocol constants owned by the chat package, identical in
// every locale.
func loadEnglishMessages() {
	messages[LangEN] = map[string]string{
		// Common
		"app.name":        "askdw",
		"app.description": "Chat with your data warehouse",
		"app.version":     "askdw v%s",

		// Status banners
		"chat.not_connected": "No database connection yet. Open the connection settings and connect first.",

		// Connect form
		"connect.title":    "Database Connection",
		"connect.host":     "Host",
		"connect.port":     "Port",
		"connect.user":     "User",
		"connect.password": "Password",
		"connect.database": "Database",
		"connect.hint":     "enter: connect • tab: next field • esc: quit",
		"connect.working":  "Connecting to database...",
		"connect.success":  "Connected to the database!",
		"connect.failure":  "Failed to connect: %v",

		// Chat view
		"chat.placeholder": "Type a message...",
		"chat.thinking":    "Thinking...",
	}
}
