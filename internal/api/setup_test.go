package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/classify"
	"github.com/askdw/askdw/internal/schema"
	"github.com/askdw/askdw/internal/session"
	"github.com/askdw/askdw/internal/warehouse"
)

// completerFunc adapts a func to the Completer interfaces of the classify,
// chat and schema packages, which share the same method set.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func fixedCompleter(out string) completerFunc {
	return func(context.Context, string) (string, error) { return out, nil }
}

func failingCompleter(err error) completerFunc {
	return func(context.Context, string) (string, error) { return "", err }
}

// staticSource supplies a canned schema dump.
type staticSource struct{ text string }

func (s staticSource) SchemaText(context.Context) (string, error) {
	return s.text, nil
}

// fakeRunner returns one canned result for every statement.
type fakeRunner struct{}

func (fakeRunner) Run(context.Context, string) (*warehouse.Result, error) {
	return &warehouse.Result{Columns: []string{"count"}, Rows: [][]any{{int64(42)}}}, nil
}

// fixtureOpts scripts the model replies for one test server. Zero values
// walk the happy path: Serious, Related, one SELECT, one summary.
type fixtureOpts struct {
	classify  completerFunc
	verify    completerFunc
	smalltalk completerFunc
	generate  completerFunc
	summarize completerFunc

	// disconnected leaves the assistants without a warehouse connection.
	disconnected bool

	// flow mounts the ask flow endpoint. Tests using it own the
	// package-level flow singleton and must not run in parallel.
	flow bool
}

func (o *fixtureOpts) defaults() {
	if o.classify == nil {
		o.classify = fixedCompleter("Serious")
	}
	if o.verify == nil {
		o.verify = fixedCompleter("Related")
	}
	if o.smalltalk == nil {
		o.smalltalk = fixedCompleter("Hello! Ask me about the warehouse.")
	}
	if o.generate == nil {
		o.generate = fixedCompleter("SELECT COUNT(*) FROM dim_customer;")
	}
	if o.summarize == nil {
		o.summarize = fixedCompleter("There are 42 customers.")
	}
}

// newTestServer builds a Server over an in-memory store and scripted
// models, and returns it with the shared store for log assertions.
func newTestServer(t *testing.T, opts fixtureOpts) (*httptest.Server, session.Store) {
	t.Helper()
	opts.defaults()

	store := session.NewMemoryStore()

	classifier, err := classify.NewClassifier(classify.ClassifierConfig{LLM: opts.classify})
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}
	verifier, err := classify.NewVerifier(classify.VerifierConfig{LLM: opts.verify})
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}
	smalltalk, err := chat.NewSmalltalk(chat.SmalltalkConfig{LLM: opts.smalltalk})
	if err != nil {
		t.Fatalf("NewSmalltalk() error: %v", err)
	}

	var conn *chat.Connection
	if !opts.disconnected {
		schemaStore, err := schema.NewStore(filepath.Join(t.TempDir(), "schema_descriptions.txt"))
		if err != nil {
			t.Fatalf("schema.NewStore() error: %v", err)
		}
		describer, err := schema.NewDescriber(schema.Config{
			Store:  schemaStore,
			Source: staticSource{text: "dim_customer(customer_key, name)"},
			LLM:    fixedCompleter("dim_customer: one row per customer."),
		})
		if err != nil {
			t.Fatalf("NewDescriber() error: %v", err)
		}
		pipeline, err := chat.NewPipeline(chat.PipelineConfig{
			Generate:  opts.generate,
			Summarize: opts.summarize,
			Runner:    fakeRunner{},
			Limiter:   rate.NewLimiter(rate.Inf, 1),
			Retry:     chat.RetryConfig{MaxRetries: 1, InitialInterval: 1, MaxInterval: 2},
		})
		if err != nil {
			t.Fatalf("NewPipeline() error: %v", err)
		}
		conn = &chat.Connection{Describer: describer, Pipeline: pipeline}
	}

	factory := func() (*chat.Assistant, error) {
		assistant, err := chat.New(chat.Config{
			Store:      store,
			Classifier: classifier,
			Verifier:   verifier,
			Smalltalk:  smalltalk,
		})
		if err != nil {
			return nil, err
		}
		if conn != nil {
			assistant.SetConnection(conn)
		}
		return assistant, nil
	}

	var flow *chat.Flow
	if opts.flow {
		chat.ResetFlowForTesting()
		t.Cleanup(chat.ResetFlowForTesting)
		assistant, err := factory()
		if err != nil {
			t.Fatalf("building flow assistant: %v", err)
		}
		flow = chat.NewFlow(genkit.Init(context.Background()), assistant)
	}

	srv, err := NewServer(ServerConfig{
		Store:        store,
		NewAssistant: factory,
		Flow:         flow,
		RateRPS:      1000,
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

// postJSON sends body as JSON and returns the response.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	resp, err := http.Post(url, "application/json", buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func doRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// decodeData unmarshals the {"data": ...} envelope into out.
func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Data == nil {
		t.Fatal("response has no data field")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
}

// decodeError unmarshals the {"error": ...} envelope.
func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var envelope struct {
		Error *errorBody `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Error == nil {
		t.Fatal("response has no error field")
	}
	return *envelope.Error
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(b)
}
