package chat

import (
	"strings"

	"github.com/askdw/askdw/internal/session"
)

// Fixed conversational texts. Rejection and failure are appended verbatim as
// AI messages, so operators can grep transcripts for exact matches.
const (
	// Greeting seeds every new session as its first AI message.
	Greeting = "Hello! I'm SQL assistant. Ask me anything about your database."

	// RejectionText answers Serious questions whose data cannot be
	// extracted from the schema. The pipeline is never invoked for these.
	RejectionText = "Thank you for your question! It doesn't seem to be related to the database. Feel free to ask anything related to the database, such as queries about employees, products, sales, or other business data, and I'll be happy to assist you!"

	// FailureText replaces any pipeline stage error. The cause is kept in
	// Reply.Err and the logs, never shown to the user.
	FailureText = "An error occurred while processing your request. This could be due to hitting the API limit or other issues. Please try again later."
)

const smalltalkPromptTemplate = `You are BIZAssistant, a financial expert. You handle both serious manager inquiries and casual questions in a way that maintains an engaging conversation with the user. You're expected to create a seamless transition between small talk and business-related topics. When casual or non-serious questions are asked, your responses should reflect your helpful, approachable identity.

Guidelines:
- The question might be in Arabic or English; you must reply in the same language as the question.
- If the question is in Arabic the output must be in Arabic.
- If the question is in English the output must be in English.
- Do not mix between Arabic and English.
- For casual questions, provide friendly and engaging responses. Keep the interaction light, but maintain your identity as a financial expert.
- When switching to serious company questions, shift to a more professional tone while remaining approachable.
- The question can be informal or formal, but ensure that your personality remains consistent across all responses.
- Your responses should reinforce your role, without overwhelming the user with excessive formality in casual conversations.

Example Responses:
- "Hello": "Hello! How can I assist you with your database today?"
- "How old are you?": "I'm as old as the insights I provide—timeless!"
- "What's your name?": "I'm a BIZAssistant, ready to help you manage your company!"
- "Tell me a joke": "Why did the accountant break up with the calculator? It just didn't add up!" or "مرة محاسب تجوز محاسبة كتبوا كتابهم على دفتر"
- For a business-related question: "Let's dive into the numbers. How can I assist you with your database today?"
- If a user asks "How can you help me manage my company?" respond as follows: "I can help you by analyzing your database, forecasting your financial future, and managing cash flow."

Question: %s

Provide a creative, non-serious response.`

const generatePromptTemplate = `You are a data analyst at a company, working with a data warehouse. The database schema follows a naming convention where column and table names may start with prefixes like 'dim' for dimension tables (e.g., dimEmployee, dimDate, dimProduct) and 'fact' for fact tables (e.g., factResellerSales). You are interacting with a user who is asking questions about this data warehouse.

The user's question may be in English or Arabic. Based on the table schema provided below and the conversation history, write an SQL query that would answer the user's question. Take the conversation history into account.

<SCHEMA>%s</SCHEMA>

Conversation History: %s

Write only the SQL query and nothing else. Do not wrap the SQL query in any other text, not even backticks.`

const summarizePromptTemplate = `You are a data analyst at a company. Respond in the same language as the user's question. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, question, SQL query, and SQL response, write a natural language response.

If the user asks in Arabic, write a natural language explanation in Arabic only.
If the user asks in English, write it in English only.

<SCHEMA>%s</SCHEMA>

Conversation History: %s
SQL Query: <SQL>%s</SQL>
User question: %s
SQL Response: %s`

// historyText renders log entries for prompt injection, one line per message.
func historyText(msgs []*session.Message) string {
	if len(msgs) == 0 {
		return "(no previous conversation)"
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case session.RoleHuman:
			lines = append(lines, "Human: "+m.Content)
		case session.RoleAI:
			lines = append(lines, "AI: "+m.Content)
		}
	}
	return strings.Join(lines, "\n")
}
