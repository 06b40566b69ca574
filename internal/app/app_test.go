package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/config"
	"github.com/askdw/askdw/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ModelName:        "gemini-2.5-flash",
		Temperature:      0.7,
		MaxTokens:        2048,
		LLMTimeout:       30 * time.Second,
		GeminiAPIKey:     "test-key",
		Language:         "en",
		WarehouseDriver:  config.DriverSQLite,
		WarehousePath:    filepath.Join(dir, "warehouse.db"),
		QueryTimeout:     10 * time.Second,
		MaxRows:          100,
		SchemaCachePath:  filepath.Join(dir, "schema_descriptions.txt"),
		ThrottleInterval: 10 * time.Millisecond,
	}
}

func TestAppClose(t *testing.T) {
	tests := []struct {
		name string
		app  *App
	}{
		{name: "empty app", app: &App{}},
		{
			name: "app with cancel",
			app: func() *App {
				_, cancel := context.WithCancel(context.Background())
				return &App{cancel: cancel}
			}(),
		},
		{
			name: "app with otel cleanup",
			app:  &App{otelCleanup: func() {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic regardless of which fields are set.
			if err := tt.app.Close(); err != nil {
				t.Errorf("Close() = %v", err)
			}
		})
	}
}

func TestSetupValidation(t *testing.T) {
	if _, err := Setup(context.Background(), nil, nil); err == nil {
		t.Fatal("Setup(nil config) should fail")
	}

	cfg := testConfig(t)
	cfg.GeminiAPIKey = ""
	if _, err := Setup(context.Background(), cfg, nil); err == nil {
		t.Fatal("Setup without any api key should fail")
	}
}

func TestSetupBuildsAssistant(t *testing.T) {
	chat.ResetFlowForTesting()
	ctx := context.Background()

	a, err := Setup(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Assistant == nil {
		t.Error("expected Assistant to be set")
	}
	if a.Flow == nil {
		t.Error("expected Flow to be set")
	}
	if a.Genkit == nil {
		t.Error("expected Genkit to be set")
	}
	if _, ok := a.Store.(*session.MemoryStore); !ok {
		t.Errorf("Store = %T, want in-memory without a history URL", a.Store)
	}
	if a.Pool != nil {
		t.Error("expected no pool without a history URL")
	}
	for _, stage := range config.Stages() {
		if a.Client(stage) == nil {
			t.Errorf("Client(%q) = nil", stage)
		}
	}
	if a.Assistant.Connected() {
		t.Error("assistant should not be connected before ConnectWarehouse")
	}
}

func TestConnectWarehouse(t *testing.T) {
	chat.ResetFlowForTesting()
	ctx := context.Background()

	a, err := Setup(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.ConnectWarehouse(ctx); err != nil {
		t.Fatalf("ConnectWarehouse() = %v", err)
	}
	if a.Warehouse == nil {
		t.Fatal("expected Warehouse to be set")
	}
	if !a.Assistant.Connected() {
		t.Error("assistant should be connected")
	}

	// Reconnecting swaps the handle without failing.
	if err := a.ConnectWarehouse(ctx); err != nil {
		t.Fatalf("second ConnectWarehouse() = %v", err)
	}
}

func TestNewSessionAssistantSharesConnection(t *testing.T) {
	chat.ResetFlowForTesting()
	ctx := context.Background()

	a, err := Setup(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	defer func() { _ = a.Close() }()

	before, err := a.NewSessionAssistant()
	if err != nil {
		t.Fatalf("NewSessionAssistant() = %v", err)
	}
	if before.Connected() {
		t.Error("assistant built before connect must be disconnected")
	}

	if err := a.ConnectWarehouse(ctx); err != nil {
		t.Fatalf("ConnectWarehouse() = %v", err)
	}

	after, err := a.NewSessionAssistant()
	if err != nil {
		t.Fatalf("NewSessionAssistant() = %v", err)
	}
	if !after.Connected() {
		t.Error("assistant built after connect must share the connection")
	}
}

func TestConnectWarehouseRejectsUnknownDriver(t *testing.T) {
	chat.ResetFlowForTesting()
	ctx := context.Background()

	cfg := testConfig(t)
	a, err := Setup(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	defer func() { _ = a.Close() }()

	cfg.WarehouseDriver = "oracle"
	if err := a.ConnectWarehouse(ctx); err == nil {
		t.Fatal("ConnectWarehouse with unknown driver should fail")
	}
	if a.Assistant.Connected() {
		t.Error("assistant must stay disconnected after a failed connect")
	}
}
