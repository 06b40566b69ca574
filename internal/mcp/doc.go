// Package mcp exposes the warehouse assistant over the Model Context
// Protocol, so MCP clients (Genkit CLI, Cursor, Claude Desktop and
// similar) can ask warehouse questions as a tool call.
//
// # Tool
//
// The server registers a single tool:
//
//   - ask_warehouse: resolve one natural-language question against the
//     connected warehouse. Accepts an optional sessionId to continue an
//     earlier conversation; without one, each call starts a fresh session.
//
// The tool result is a JSON object with the session id, the reply kind
// (answer, rejection, smalltalk or failure), the reply text and, for
// answers, the executed SQL.
//
// # Error Handling
//
// Client mistakes (blank question, malformed or unknown session id, no
// warehouse connection) come back as IsError tool results, so the calling
// model can read the message and correct itself. Stage failures inside the
// assistant surface the same way with a generic message; the cause goes to
// the server log only. Protocol-level errors are reserved for bugs.
//
// # Transport
//
// Run is blocking and typically receives a stdio transport:
//
//	server.Run(ctx, &mcp.StdioTransport{})
//
// The underlying SDK manages sessions and message handling; the server is
// safe for concurrent tool calls, which serialize on the shared assistant.
package mcp
