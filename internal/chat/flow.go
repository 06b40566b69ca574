package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input is the request payload for the ask flow.
type Input struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// Output is the response payload from the ask flow.
type Output struct {
	Kind      string `json:"kind"`
	Answer    string `json:"answer"`
	SQL       string `json:"sql,omitempty"`
	SessionID string `json:"sessionId"`
}

// FlowName is the registered name of the ask flow in Genkit.
const FlowName = "askdw/ask"

// Flow is the Genkit flow wrapping Assistant.Respond, used by the API
// server and the Developer UI.
type Flow = core.Flow[Input, Output, struct{}]

// Package-level singleton: genkit.DefineFlow panics on re-registration.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the ask flow singleton, defining it on first call.
// Subsequent calls return the existing flow and ignore the arguments.
func NewFlow(g *genkit.Genkit, assistant *Assistant) *Flow {
	flowOnce.Do(func() {
		flow = defineFlow(g, assistant)
	})
	return flow
}

// ResetFlowForTesting clears the singleton so tests can define the flow
// against their own Genkit instance. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

func defineFlow(g *genkit.Genkit, assistant *Assistant) *Flow {
	return genkit.DefineFlow(g, FlowName,
		func(ctx context.Context, input Input) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			reply, err := assistant.Respond(ctx, sessionID, input.Question)
			if err != nil {
				return Output{SessionID: input.SessionID}, err
			}

			return Output{
				Kind:      string(reply.Kind),
				Answer:    reply.Text,
				SQL:       reply.SQL,
				SessionID: input.SessionID,
			}, nil
		},
	)
}
