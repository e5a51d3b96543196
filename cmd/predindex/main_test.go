package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/predindex/config"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/ingestion"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"ingest", "search", "correlate", "quote", "reindex", "reembed", "serve"} {
		assert.NotNil(t, findCommand(app, name), name)
	}

	t.Run("correlate threshold default", func(t *testing.T) {
		cmd := findCommand(app, "correlate")
		var threshold *cli.Float64Flag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.Float64Flag); ok && f.Name == "threshold" {
				threshold = f
			}
		}
		require.NotNil(t, threshold)
		assert.Equal(t, 0.75, threshold.Value)
	})
}

func TestCommandValidation(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	run := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		app.ErrWriter = &bytes.Buffer{}
		return app.Run(append([]string{"predindex"}, args...))
	}

	t.Run("search needs a query", func(t *testing.T) {
		err := run("search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query is required")
	})

	t.Run("search rejects unknown kind", func(t *testing.T) {
		err := run("search", "--kind", "trade", "fed")
		assert.ErrorIs(t, err, core.ErrInvalidKind)
	})

	t.Run("reembed batch size", func(t *testing.T) {
		err := run("reembed", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("correlate rejects unknown source", func(t *testing.T) {
		err := run("correlate", "--from", "betfair")
		assert.ErrorIs(t, err, core.ErrUnknownSource)
	})

	t.Run("quote needs a ticker", func(t *testing.T) {
		err := run("quote")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ticker is required")
	})

	t.Run("quote rejects unknown source", func(t *testing.T) {
		err := run("quote", "--source", "betfair", "KXFED")
		assert.ErrorIs(t, err, core.ErrUnknownSource)
	})

	t.Run("quote cannot detect source", func(t *testing.T) {
		err := run("quote", "FED-RATE")
		assert.ErrorIs(t, err, core.ErrUnknownSource)
	})

	t.Run("invalid log level", func(t *testing.T) {
		err := run("--log-level", "loud", "search", "fed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("missing config file", func(t *testing.T) {
		err := run("--config", filepath.Join(t.TempDir(), "nope.yml"), "search", "fed")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predindex.log")
	var console bytes.Buffer

	logger, err := newLogger(config.LogConfig{Level: "warn", File: path}, &console)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "page", 3)

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page=3")
}

func TestParseSources(t *testing.T) {
	got, err := parseSources([]string{"kalshi,Polymarket", " "})
	require.NoError(t, err)
	assert.Equal(t, []core.Source{core.SourceKalshi, core.SourcePolymarket}, got)

	got, err = parseSources(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseSources([]string{"betfair"})
	assert.ErrorIs(t, err, core.ErrUnknownSource)
}

func TestParseKinds(t *testing.T) {
	got, err := parseKinds("")
	require.NoError(t, err)
	assert.Equal(t, core.RecordKinds, got)

	got, err = parseKinds("events")
	require.NoError(t, err)
	assert.Equal(t, []core.RecordKind{core.KindEvent}, got)

	_, err = parseKinds("trades")
	assert.ErrorIs(t, err, core.ErrInvalidKind)
}

func TestPrintReport(t *testing.T) {
	report := &ingestion.Report{
		RunID: uuid.New(),
		Summaries: []ingestion.Summary{
			{
				Task:    ingestion.TaskSpec{Source: core.SourceKalshi, Kind: core.KindMarket, Status: "open"},
				State:   ingestion.StateCompleted,
				Reason:  ingestion.ReasonEnd,
				Pages:   3,
				Records: 250,
			},
		},
		Elapsed: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "end")
	assert.Contains(t, out, "250")
	assert.Contains(t, out, "250 records in 1.5s")
}

func TestPrintQuote(t *testing.T) {
	q := &core.Quote{
		Ticker:    "7110",
		Source:    core.SourcePolymarket,
		Price:     decimal.RequireFromString("0.5"),
		Bid:       decimal.NewNullDecimal(decimal.RequireFromString("0.48")),
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	printQuote(&buf, q)
	out := buf.String()
	assert.Contains(t, out, "Polymarket 7110")
	assert.Contains(t, out, "price:  0.5")
	assert.Contains(t, out, "bid:    0.48")
	assert.Contains(t, out, "ask:    -")
	assert.NotContains(t, out, "volume")
	assert.Contains(t, out, "2025-06-01T12:00:00Z")
}

func TestInterruptible(t *testing.T) {
	ctx, check, stop := interruptible(context.Background())
	defer stop()

	require.NoError(t, check())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	assert.Eventually(t, func() bool { return check() != nil }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, check(), errInterrupted)
	assert.NoError(t, ctx.Err())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled by second interrupt")
	}
}
