package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/AmoghxAnubis/Agora/internal/docstore"
	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/AmoghxAnubis/Agora/internal/server"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// seedStore writes docs into a fresh badger directory and closes it so the
// inspector can open it read-only.
func seedStore(t *testing.T, docs ...docstore.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documents")
	db, err := docstore.Open(path)
	require.NoError(t, err)

	store := docstore.NewStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	for _, doc := range docs {
		_, err := store.Upsert(doc)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	return path
}

func statsServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrintDocuments(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	path := seedStore(t,
		docstore.Document{RoomID: "alpha", Content: "print('hello')\nprint('world')", Language: "python", UpdatedAt: at},
		docstore.Document{RoomID: "beta", Content: "fmt.Println(1)", Language: "go", UpdatedAt: at},
	)

	var out bytes.Buffer
	req.NoError(printDocuments(&out, path, 0, 12))

	text := out.String()
	req.Contains(text, "2 document(s) in "+path)
	req.Contains(text, "ROOM")
	req.Contains(text, "alpha")
	req.Contains(text, "beta")
	req.Contains(text, "python")
	req.Contains(text, at.Format(time.RFC3339))
	req.Contains(text, "print('hello…")
	req.NotContains(text, "world")
}

func TestPrintDocuments_Limit(t *testing.T) {
	path := seedStore(t,
		docstore.Document{RoomID: "alpha", Content: "a"},
		docstore.Document{RoomID: "beta", Content: "b"},
	)

	var out bytes.Buffer
	require.NoError(t, printDocuments(&out, path, 1, 40))
	require.Contains(t, out.String(), "1 document(s)")
	require.NotContains(t, out.String(), "beta")
}

func TestPrintDocuments_MissingStore(t *testing.T) {
	var out bytes.Buffer
	err := printDocuments(&out, filepath.Join(t.TempDir(), "nothing-here"), 0, 40)
	require.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	req := require.New(t)
	srv := statsServer(t, http.StatusOK, server.Stats{
		Connections: 3,
		Rooms: []room.Summary{
			{ID: "alpha", Members: 2},
			{ID: "beta", Members: 1},
		},
		Process: &server.ProcessStats{PID: 42, RSSBytes: 3 << 20, CPUPercent: 1.5},
	})

	var out bytes.Buffer
	req.NoError(printStats(&out, srv.URL+"/"))

	text := out.String()
	req.Contains(text, "3 connection(s), 2 room(s), pid 42, rss 3.0 MiB, cpu 1.5%")
	req.Contains(text, "alpha")
	req.Contains(text, "MEMBERS")
}

func TestPrintStats_ServerError(t *testing.T) {
	srv := statsServer(t, http.StatusInternalServerError, map[string]string{"error": "boom"})

	var out bytes.Buffer
	err := printStats(&out, srv.URL)
	require.ErrorContains(t, err, "unexpected status")
	require.Empty(t, out.String())
}

func TestPrintStats_InvalidBody(t *testing.T) {
	srv := statsServer(t, http.StatusOK, "not stats")

	var out bytes.Buffer
	require.ErrorContains(t, printStats(&out, srv.URL), "decode stats")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    string
	}{
		{name: "whitespace is folded", content: "a\n  b\tc ", n: 40, want: "a b c"},
		{name: "no limit", content: "one two three", n: 0, want: "one two three"},
		{name: "negative limit", content: "one two", n: -1, want: "one two"},
		{name: "exact length", content: "short", n: 5, want: "short"},
		{name: "ascii cut", content: "abcdef", n: 3, want: "abc…"},
		{name: "accented runes", content: "héllo wörld", n: 5, want: "héllo…"},
		{name: "wide runes", content: "日本語のテキスト", n: 3, want: "日本語…"},
		{name: "folding before cutting", content: "é\n\nè\tê", n: 3, want: "é è…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, truncate(tt.content, tt.n))
		})
	}
}

func TestRun(t *testing.T) {
	t.Run("usage without a source", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 2, run(nil, &stdout, &stderr))
		require.Contains(t, stderr.String(), "-stats")
	})

	t.Run("unknown flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
	})

	t.Run("failure is reported on stderr", func(t *testing.T) {
		srv := statsServer(t, http.StatusInternalServerError, nil)
		var stdout, stderr bytes.Buffer
		require.Equal(t, 1, run([]string{"-stats", srv.URL}, &stdout, &stderr))
		require.Contains(t, stderr.String(), "inspect: unexpected status")
		require.Empty(t, stdout.String())
	})

	t.Run("documents", func(t *testing.T) {
		path := seedStore(t, docstore.Document{RoomID: "alpha", Content: "x"})
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run([]string{"-db", path}, &stdout, &stderr))
		require.Contains(t, stdout.String(), "alpha")
		require.Empty(t, stderr.String())
	})
}
