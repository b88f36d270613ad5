package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorder()
	scoped := NewScopedAPI("sisis", recorder)

	scoped.ReportBroken("client.account", "no loan table")
	scoped.ReportWarning("client.detail", "no title")
	scoped.ReportDebug("fetched", 3)
	scoped.ReportCount("client.search", 20)

	reports := recorder.Reports("")
	require.Len(t, reports, 4)
	require.Equal(t, "sisis: client.account", reports[0].Id)
	require.Equal(t, []any{"no loan table"}, reports[0].Params)
	require.True(t, recorder.Has("warning", "sisis: client.detail"))
	require.True(t, recorder.Has("count", "client.search"))
	require.False(t, recorder.Has("broken", "client.detail"))
	require.Len(t, recorder.Reports("debug"), 1)
}

func TestSlogAPI(t *testing.T) {
	out := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tel := NewScopedAPI("koha", NewSlogAPI(logger))

	tel.ReportWarning("api.detail", "detail page without title")

	var line map[string]any
	err := json.Unmarshal(out.Bytes(), &line)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "WARN", line["level"])
	require.Contains(t, out.String(), "koha: api.detail")
	require.Contains(t, out.String(), "detail page without title")
}
