package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

var runAt = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func sampleMatches() []models.Match {
	return []models.Match{
		{URL: "https://www.sofascore.com/event/1", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Tournament: "Premier League", StartTime: "2024-03-09 12:00:00", Status: "Not started"},
		{URL: "https://www.sofascore.com/event/2", HomeTeam: "Milan", AwayTeam: "Inter", Tournament: "Serie A", StartTime: models.UnknownValue, Status: models.DefaultStatus},
	}
}

func testStore(t *testing.T) *artifacts.Store {
	t.Helper()
	dir := t.TempDir()
	return artifacts.New(config.PathsConfig{
		DataDir:        dir,
		CookiesFile:    filepath.Join(dir, "cookies", "c.json"),
		RequestsFile:   filepath.Join(dir, "api_requests", "r.json"),
		MatchesDir:     filepath.Join(dir, "matches"),
		ScreenshotsDir: filepath.Join(dir, "screenshots"),
	})
}

func TestFile_SavesIndentedArray(t *testing.T) {
	store := testStore(t)
	var out bytes.Buffer
	run := RunInfo{ID: "r1", Method: "api", At: runAt}

	require.NoError(t, NewFile(store, &out).Write(context.Background(), run, sampleMatches()))

	path := store.MatchesPath("api", runAt)
	assert.True(t, strings.HasSuffix(path, "sofascore_matches_api_20240309_143005.json"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"url\""))

	var got []models.Match
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(sampleMatches(), got); diff != "" {
		t.Errorf("saved matches mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, out.String(), path)
}

func TestFile_EmptyResultWritesNothing(t *testing.T) {
	store := testStore(t)
	run := RunInfo{Method: "browser", At: runAt}

	require.NoError(t, NewFile(store, nil).Write(context.Background(), run, nil))
	_, err := os.Stat(store.MatchesPath("browser", runAt))
	assert.True(t, os.IsNotExist(err))
}

func TestConsole_Table(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	require.NoError(t, c.Write(context.Background(), RunInfo{Method: "api"}, sampleMatches()))
	s := out.String()
	assert.Contains(t, s, "Found 2 matches (method: api)")
	assert.Contains(t, s, "Arsenal vs Chelsea")
	assert.Contains(t, s, "Serie A")

	out.Reset()
	require.NoError(t, c.Write(context.Background(), RunInfo{Method: "network"}, nil))
	assert.Equal(t, "No matches found (method: network)\n", out.String())
}

func storedMatches(t *testing.T, s *SQL) []models.Match {
	t.Helper()
	rows, err := s.db.QueryContext(context.Background(), `SELECT url, home_team, away_team, tournament, start_time, status FROM matches ORDER BY url`)
	require.NoError(t, err)
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var m models.Match
		require.NoError(t, rows.Scan(&m.URL, &m.HomeTeam, &m.AwayTeam, &m.Tournament, &m.StartTime, &m.Status))
		out = append(out, m)
	}
	require.NoError(t, rows.Err())
	return out
}

func storedRunID(t *testing.T, s *SQL, url string) string {
	t.Helper()
	var id string
	require.NoError(t, s.db.QueryRowContext(context.Background(), `SELECT run_id FROM matches WHERE url = ?`, url).Scan(&id))
	return id
}

func TestSQL_UpsertByURL(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQL(ctx, config.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	first := NewRunInfo("api", runAt, time.Second, nil)
	require.NoError(t, s.Write(ctx, first, sampleMatches()))

	updated := sampleMatches()[:1]
	updated[0].Status = "1st half"
	second := NewRunInfo("browser", runAt.Add(time.Hour), time.Second, nil)
	require.NoError(t, s.Write(ctx, second, updated))

	got := storedMatches(t, s)
	require.Len(t, got, 2)
	assert.Equal(t, "1st half", got[0].Status)
	assert.Equal(t, models.DefaultStatus, got[1].Status)

	assert.Equal(t, second.ID, storedRunID(t, s, "https://www.sofascore.com/event/1"))
	assert.Equal(t, first.ID, storedRunID(t, s, "https://www.sofascore.com/event/2"))
}

func TestSQL_LongURL(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQL(ctx, config.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info('matches')`)
	require.NoError(t, err)
	types := map[string]string{}
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		types[name] = typ
	}
	require.NoError(t, rows.Err())
	rows.Close()
	assert.Equal(t, "TEXT", types["url"])

	long := sampleMatches()[:1]
	long[0].URL = "https://www.sofascore.com/" + strings.Repeat("arsenal-chelsea/", 125) + "event/1"
	require.NoError(t, s.Write(ctx, NewRunInfo("api", runAt, 0, nil), long))

	got := storedMatches(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, long[0].URL, got[0].URL)
}

func TestSQL_EmptyWriteIsNoop(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQL(ctx, config.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(ctx, NewRunInfo("api", runAt, 0, nil), nil))
	assert.Empty(t, storedMatches(t, s))
}

func TestNewSQL_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"empty dsn", config.StorageConfig{Driver: "sqlite"}},
		{"unknown driver", config.StorageConfig{Driver: "mysql", DSN: "root@/db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSQL(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSQL_Placeholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", (&SQL{driver: "postgres"}).placeholders(3))
	assert.Equal(t, "?, ?", (&SQL{driver: "sqlite"}).placeholders(2))
}

func TestRedis_Snapshot(t *testing.T) {
	run := RunInfo{ID: "abc", Method: "auto", At: runAt.In(time.FixedZone("MSK", 3*3600))}
	data, err := json.Marshal(newSnapshot(run, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"abc","method":"auto","scraped_at":"2024-03-09T14:30:05Z","matches":[]}`, string(data))
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1", Key: "k"})
	assert.Error(t, err)
}

func telegramServer(t *testing.T, sent *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"scraper","username":"scraper_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			*sent = append(*sent, r.FormValue("text"))
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1709994605,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestTelegram_SendsSummary(t *testing.T) {
	var sent []string
	srv := telegramServer(t, &sent)
	defer srv.Close()

	tg, err := newTelegram(config.TelegramConfig{BotToken: "123:abc", ChatID: 42}, srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	require.NoError(t, tg.Write(context.Background(), RunInfo{Method: "api", At: runAt, Took: 1500 * time.Millisecond}, sampleMatches()))
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Method: api, matches: 2, took: 1.5s")
	assert.Contains(t, sent[0], "1. Arsenal vs Chelsea")
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	_, err := NewTelegram(config.TelegramConfig{BotToken: "x"})
	assert.Error(t, err)
}

func TestSummary_TruncatesLongRuns(t *testing.T) {
	var matches []models.Match
	for i := 0; i < telegramListed+3; i++ {
		matches = append(matches, models.Match{HomeTeam: fmt.Sprintf("H%d", i), AwayTeam: "A"})
	}
	s := summary(RunInfo{Method: "browser", At: runAt, Err: models.ErrChallengeTimeout}, matches)

	assert.Contains(t, s, "Error: challenge not resolved in time")
	assert.Contains(t, s, "10. H9 vs A")
	assert.NotContains(t, s, "H10 vs A")
	assert.Contains(t, s, "and 3 more")
}

type fakeSink struct {
	name   string
	err    error
	wrote  int
	closed bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(context.Context, RunInfo, []models.Match) error {
	f.wrote++
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	broken := &fakeSink{name: "broken", err: errors.New("disk full")}
	ok := &fakeSink{name: "ok"}
	m := Multi{broken, ok}

	err := m.Write(context.Background(), RunInfo{}, sampleMatches())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistenceFailure))
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, ok.wrote)

	require.NoError(t, m.Close())
	assert.True(t, broken.closed)
	assert.True(t, ok.closed)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "sqlite", DSN: ":memory:"}
	cfg.Redis.Addr = "127.0.0.1:1"

	m := FromConfig(context.Background(), cfg, testStore(t), Options{SaveOnly: true, Out: io.Discard})
	defer m.Close()

	var names []string
	for _, s := range m {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"file", "sql"}, names)

	cfg.Storage = config.StorageConfig{}
	cfg.Redis.Addr = ""
	cfg.Scraper.SaveToFile = false
	m = FromConfig(context.Background(), cfg, testStore(t), Options{Out: io.Discard})
	require.Len(t, m, 1)
	assert.Equal(t, "console", m[0].Name())
}
