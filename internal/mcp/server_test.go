package mcp

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/kuramap/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching the real ~/.kuramap/
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestNewServer_Defaults(t *testing.T) {
	home := isolateHome(t)

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if _, ok := server.store.(*store.SQLiteRunStore); !ok {
		t.Errorf("default store = %T, want *SQLiteRunStore", server.store)
	}
	if _, err := os.Stat(filepath.Join(home, ".kuramap", "runs.db")); err != nil {
		t.Errorf("default database not created: %v", err)
	}
	if got, want := server.auditLogger.Path(), filepath.Join(home, ".kuramap", AuditFile); got != want {
		t.Errorf("audit path = %q, want %q", got, want)
	}
	if server.trace != nil {
		t.Error("trace logger enabled at info level")
	}
}

func TestNewServer_HasRateLimiters(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, tool := range []string{"kuramap_train", "kuramap_sync", "kuramap_runs"} {
		if _, ok := server.toolLimiters[tool]; !ok {
			t.Errorf("no rate limiter for %s", tool)
		}
	}
}

func TestClose(t *testing.T) {
	isolateHome(t)
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", AuditDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_InMemoryProtocol(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect failed: %v", err)
	}
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect failed: %v", err)
	}
	defer cs.Close()

	t.Run("ListTools", func(t *testing.T) {
		res, err := cs.ListTools(ctx, nil)
		if err != nil {
			t.Fatalf("ListTools failed: %v", err)
		}
		var names []string
		for _, tool := range res.Tools {
			names = append(names, tool.Name)
		}
		slices.Sort(names)
		want := []string{"kuramap_runs", "kuramap_sync", "kuramap_train"}
		if !slices.Equal(names, want) {
			t.Errorf("tools = %v, want %v", names, want)
		}
	})

	t.Run("CallSync", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &sdk.CallToolParams{
			Name:      "kuramap_sync",
			Arguments: map[string]any{"rows": 2, "cols": 2, "steps": 20},
		})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		if res.IsError {
			t.Fatalf("tool returned error: %+v", res.Content)
		}
		if res.StructuredContent == nil {
			t.Error("no structured content")
		}
	})

	t.Run("CallTrainError", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &sdk.CallToolParams{
			Name:      "kuramap_train",
			Arguments: map[string]any{"coupling_mode": "sideways"},
		})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		if !res.IsError {
			t.Error("invalid coupling mode did not produce a tool error")
		}
	})

	t.Run("ReadResource", func(t *testing.T) {
		res, err := cs.ReadResource(ctx, &sdk.ReadResourceParams{URI: recentRunsURI})
		if err != nil {
			t.Fatalf("ReadResource failed: %v", err)
		}
		if len(res.Contents) != 1 || res.Contents[0].MIMEType != "text/markdown" {
			t.Errorf("contents = %+v", res.Contents)
		}
	})
}
