package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/spatial"
	"github.com/lazypower/waypoint/internal/store"
)

// run executes the command tree with args against an isolated home and
// database, returning stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		memoriesUser, exportOut, serverURL, configPath = "", "", "", ""
	})
	err := rootCmd.Execute()
	memoriesUser, exportOut = "", ""
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	dbPath := filepath.Join(home, "waypoint.db")
	t.Setenv("HOME", home)
	t.Setenv("WAYPOINT_CONFIG", "")
	t.Setenv("WAYPOINT_LOG_LEVEL", "")
	t.Setenv("WAYPOINT_DB", dbPath)
	return dbPath
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "waypoint dev") {
		t.Errorf("output = %q", out)
	}
}

func TestUserRegisterAndList(t *testing.T) {
	isolate(t)

	out, err := run(t, "user", "register", "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, "registered alice") {
		t.Errorf("register output = %q", out)
	}

	if _, err := run(t, "user", "register", "alice", "other@example.com"); err == nil {
		t.Error("duplicate register should fail")
	}

	out, err = run(t, "user", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "alice@example.com") || !strings.Contains(out, "never") {
		t.Errorf("list output = %q", out)
	}
}

func TestMemoriesExport(t *testing.T) {
	dbPath := isolate(t)

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u, err := db.CreateUser("alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	data, err := memory.Encode(u.ID, []memory.Memory{{
		ID:        "m1",
		Text:      "spare key under the mat",
		Position:  spatial.Vec3{Z: -0.5},
		CreatedAt: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
		OwnerID:   u.ID,
	}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := db.Save(context.Background(), u.ID, data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	db.Close()

	out, err := run(t, "memories", "export", "--user", "alice")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var got struct {
		OwnerID  string          `json:"owner_id"`
		Memories []memory.Memory `json:"memories"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode export: %v; output: %s", err, out)
	}
	if got.OwnerID != u.ID || len(got.Memories) != 1 || got.Memories[0].Text != "spare key under the mat" {
		t.Errorf("export = %+v", got)
	}

	out, err = run(t, "memories", "list", "--user", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "1. spare key under the mat") {
		t.Errorf("list output = %q", out)
	}

	if _, err := run(t, "memories", "export"); err == nil {
		t.Error("export without --user should fail")
	}
}

func TestMemoriesClearStored(t *testing.T) {
	dbPath := isolate(t)

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u, err := db.CreateUser("alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	data, err := memory.Encode(u.ID, []memory.Memory{
		{ID: "m1", Text: "one", CreatedAt: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC), OwnerID: u.ID},
		{ID: "m2", Text: "two", CreatedAt: time.Date(2025, 10, 1, 12, 1, 0, 0, time.UTC), OwnerID: u.ID},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := db.Save(context.Background(), u.ID, data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	db.Close()

	out, err := run(t, "memories", "clear", "--user", "alice")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "removed 2 memories") {
		t.Errorf("clear output = %q", out)
	}

	out, err = run(t, "memories", "list", "--user", "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No memories.") {
		t.Errorf("list after clear = %q", out)
	}

	if _, err := run(t, "memories", "clear", "--user", "nobody"); err == nil {
		t.Error("clear for unknown user should fail")
	}
}

func TestTapAgainstServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"hit": false})
	}))
	defer ts.Close()

	out, err := run(t, "tap", "--url", ts.URL, "12", "34")
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if strings.TrimSpace(out) != "nothing there" {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "tap", "--url", ts.URL, "x", "1"); err == nil {
		t.Error("non-numeric coordinate should fail")
	}
}
