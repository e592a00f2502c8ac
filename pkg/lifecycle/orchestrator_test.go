package lifecycle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minnojs/pavlovia/pkg/experiment"
	"github.com/minnojs/pavlovia/pkg/lifecycle"
	"github.com/minnojs/pavlovia/pkg/logger"
	"github.com/minnojs/pavlovia/pkg/pavloviatest"
	"github.com/minnojs/pavlovia/pkg/results"
	"github.com/minnojs/pavlovia/pkg/session"
	"github.com/minnojs/pavlovia/pkg/transport"
)

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, data)
	return args.String(0), args.Error(1)
}

var noon = time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

const noonKey = "exp1_SESSION_2024-01-01_12h00.00.000.csv"

func newOrchestrator(srv *pavloviatest.Server, opts ...lifecycle.Option) *lifecycle.Orchestrator {
	base := []lifecycle.Option{
		lifecycle.WithClock(clockwork.NewFakeClockAt(noon)),
		lifecycle.WithPageURL(srv.PageURL("")),
	}
	return lifecycle.New(transport.NewClient(), append(base, opts...)...)
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithExperiment("exp1", "u/exp1"))
	defer srv.Close()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug))
	downloader := &mockDownloader{}

	o := newOrchestrator(srv, lifecycle.WithLogger(log), lifecycle.WithDownloader(downloader), lifecycle.WithRunID("run-1"))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	assert.Equal(t, session.StateOpen, o.SessionState())
	require.NotNil(t, o.Config())
	assert.Equal(t, experiment.StatusRunning, o.Config().Experiment.Status)

	o.Finish(ctx, []byte("a,b\n1,2"))
	require.NoError(t, o.Err())
	assert.Equal(t, session.StateClosed, o.SessionState())

	uploads := srv.Calls(pavloviatest.RouteUpload)
	require.Len(t, uploads, 1)
	assert.Equal(t, noonKey, uploads[0].Form.Get("key"))
	assert.Equal(t, "a,b\n1,2", uploads[0].Form.Get("value"))

	closes := srv.Calls(pavloviatest.RouteClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "true", closes[0].Form.Get("isCompleted"))
	assert.Equal(t, uploads[0].Token, closes[0].Token)
	assert.Equal(t, "CLOSED", srv.SessionStatus(closes[0].Token))

	downloader.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	select {
	case <-o.Done():
	default:
		t.Fatal("Done must be closed after Finish")
	}

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "run-1", rec["run_id"], line)
	}
}

func TestOrchestrator_Pilot(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	downloader := &mockDownloader{}
	downloader.On("Download", mock.Anything, noonKey, "text/csv", []byte("a,b")).Return("file:///tmp/x.csv", nil).Once()

	o := lifecycle.New(transport.NewClient(),
		lifecycle.WithClock(clockwork.NewFakeClockAt(noon)),
		lifecycle.WithPageURL(srv.PageURL("__pilotToken=abc")),
		lifecycle.WithDownloader(downloader),
	)

	o.Init(context.Background(), "config.json")
	o.Finish(context.Background(), []byte("a,b"))
	require.NoError(t, o.Err())

	assert.Equal(t, "abc", srv.Calls(pavloviatest.RouteOpen)[0].Form.Get("pilotToken"))
	assert.Empty(t, srv.Calls(pavloviatest.RouteUpload))
	assert.Len(t, srv.Calls(pavloviatest.RouteClose), 1)
	downloader.AssertExpectations(t)
}

func TestOrchestrator_InitFailure(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithFailure(pavloviatest.RouteConfig, http.StatusNotFound))
	defer srv.Close()

	downloader := &mockDownloader{}
	downloader.On("Download", mock.Anything, "results_SESSION_2024-01-01_12h00.00.000.csv", "text/csv", []byte("x")).
		Return("here", nil).Once()

	o := newOrchestrator(srv, lifecycle.WithDownloader(downloader))
	assert.NotPanics(t, func() {
		o.Init(context.Background(), srv.ConfigURL())
		o.Finish(context.Background(), []byte("x"))
	})

	err := o.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, experiment.ErrConfiguration)
	assert.ErrorIs(t, err, experiment.ErrNetwork)
	assert.Nil(t, o.Config())
	assert.Equal(t, session.StateUninitialized, o.SessionState())
	assert.Empty(t, srv.Calls(pavloviatest.RouteOpen, pavloviatest.RouteUpload, pavloviatest.RouteClose))
	downloader.AssertExpectations(t)
}

func TestOrchestrator_OpenFailure(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithOpenResponse(map[string]any{"status": "OPEN"}))
	defer srv.Close()

	downloader := &mockDownloader{}
	// The configuration carries no status, so the results are offered.
	downloader.On("Download", mock.Anything, noonKey, "text/csv", mock.Anything).Return("here", nil).Once()

	o := newOrchestrator(srv, lifecycle.WithDownloader(downloader))
	o.Init(context.Background(), srv.ConfigURL())
	assert.Equal(t, session.StateUninitialized, o.SessionState())
	assert.ErrorIs(t, o.Err(), experiment.ErrProtocol)

	o.Finish(context.Background(), []byte("x"))
	assert.Empty(t, srv.Calls(pavloviatest.RouteClose))
	downloader.AssertExpectations(t)
}

func TestOrchestrator_UploadFailureFallsBack(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithFailure(pavloviatest.RouteUpload, http.StatusBadGateway))
	defer srv.Close()

	downloader := &mockDownloader{}
	downloader.On("Download", mock.Anything, noonKey, "text/csv", []byte("a,b")).Return("here", nil).Once()

	o := newOrchestrator(srv, lifecycle.WithDownloader(downloader))
	o.Init(context.Background(), srv.ConfigURL())
	o.Finish(context.Background(), []byte("a,b"))

	assert.ErrorIs(t, o.Err(), experiment.ErrNetwork)
	assert.Equal(t, session.StateClosed, o.SessionState())
	assert.Len(t, srv.Calls(pavloviatest.RouteClose), 1)
	downloader.AssertExpectations(t)
}

func TestOrchestrator_FinishWaitsForInit(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	o := newOrchestrator(srv)
	finished := make(chan struct{})
	go func() {
		o.Finish(context.Background(), []byte("a,b"))
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("Finish returned before Init")
	case <-time.After(50 * time.Millisecond):
	}

	o.Init(context.Background(), srv.ConfigURL())

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Finish did not complete")
	}
	require.NoError(t, o.Err())
	assert.Len(t, srv.Calls(pavloviatest.RouteUpload), 1)
}

func TestOrchestrator_FinishCanceledBeforeInit(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	o := newOrchestrator(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o.Finish(ctx, []byte("x"))
	assert.ErrorIs(t, o.Err(), context.Canceled)
	assert.Empty(t, srv.Calls())
}

func TestOrchestrator_RunsOnce(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	o := newOrchestrator(srv)
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Init(ctx, srv.ConfigURL())
	o.Finish(ctx, []byte("x"))
	o.Finish(ctx, []byte("y"))

	assert.Len(t, srv.Calls(pavloviatest.RouteConfig), 1)
	assert.Len(t, srv.Calls(pavloviatest.RouteOpen), 1)
	assert.Len(t, srv.Calls(pavloviatest.RouteUpload), 1)
	assert.Len(t, srv.Calls(pavloviatest.RouteClose), 1)
	require.NoError(t, o.Err())
}

func TestOrchestrator_Unload(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithSaveIncompleteResults(true))
	defer srv.Close()

	beacon := transport.NewBeacon(transport.NewClient())
	o := newOrchestrator(srv, lifecycle.WithBeacon(beacon))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Unload(ctx, []byte("partial"))
	assert.Equal(t, session.StateClosed, o.SessionState())

	require.NoError(t, beacon.Flush(ctx))
	require.True(t, srv.WaitFor(pavloviatest.RouteBeaconClose, 1, time.Second))

	uploads := srv.Calls(pavloviatest.RouteUpload)
	require.Len(t, uploads, 1)
	assert.Equal(t, "partial", uploads[0].Form.Get("value"))

	closes := srv.Calls(pavloviatest.RouteBeaconClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "false", closes[0].Form.Get("isCompleted"))
	assert.Empty(t, srv.Calls(pavloviatest.RouteClose))

	// A second teardown has nothing left to close.
	o.Unload(ctx, []byte("partial"))
	require.NoError(t, beacon.Flush(ctx))
	assert.Len(t, srv.Calls(pavloviatest.RouteBeaconClose), 1)
}

func TestOrchestrator_UnloadSkipsIncompleteResults(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	beacon := transport.NewBeacon(transport.NewClient())
	o := newOrchestrator(srv, lifecycle.WithBeacon(beacon))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Unload(ctx, []byte("partial"))
	require.NoError(t, beacon.Flush(ctx))

	assert.Empty(t, srv.Calls(pavloviatest.RouteUpload))
	assert.Len(t, srv.Calls(pavloviatest.RouteBeaconClose), 1)
}

func TestOrchestrator_UnloadAfterFinish(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithSaveIncompleteResults(true))
	defer srv.Close()

	beacon := transport.NewBeacon(transport.NewClient())
	o := newOrchestrator(srv, lifecycle.WithBeacon(beacon))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Finish(ctx, []byte("a,b"))
	o.Unload(ctx, []byte("partial"))
	require.NoError(t, beacon.Flush(ctx))

	assert.Len(t, srv.Calls(pavloviatest.RouteUpload), 1)
	assert.Empty(t, srv.Calls(pavloviatest.RouteBeaconClose))
}

func TestOrchestrator_FinishAfterUnloadOffers(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New(pavloviatest.WithSaveIncompleteResults(true))
	defer srv.Close()

	downloader := &mockDownloader{}
	downloader.On("Download", mock.Anything, noonKey, "text/csv", []byte("a,b")).Return("here", nil).Once()

	beacon := transport.NewBeacon(transport.NewClient())
	o := newOrchestrator(srv, lifecycle.WithBeacon(beacon), lifecycle.WithDownloader(downloader))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Unload(ctx, []byte("partial"))
	o.Finish(ctx, []byte("a,b"))
	require.NoError(t, beacon.Flush(ctx))

	require.NoError(t, o.Err())
	assert.Equal(t, session.StateClosed, o.SessionState())

	uploads := srv.Calls(pavloviatest.RouteUpload)
	require.Len(t, uploads, 1)
	assert.Equal(t, "partial", uploads[0].Form.Get("value"))

	closes := srv.Calls(pavloviatest.RouteBeaconClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "false", closes[0].Form.Get("isCompleted"))
	assert.Empty(t, srv.Calls(pavloviatest.RouteClose))
	downloader.AssertExpectations(t)
}

func TestOrchestrator_PilotWithoutDownloader(t *testing.T) {
	t.Parallel()

	srv := pavloviatest.New()
	defer srv.Close()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	o := newOrchestrator(srv, lifecycle.WithLogger(log), lifecycle.WithPageURL(srv.PageURL("__pilotToken=abc")))
	ctx := context.Background()

	o.Init(ctx, srv.ConfigURL())
	o.Finish(ctx, []byte("a,b"))

	assert.ErrorIs(t, o.Err(), results.ErrNoDownloader)
	assert.Equal(t, 1, strings.Count(buf.String(), results.ErrNoDownloader.Error()))
	assert.NotContains(t, buf.String(), "offering results failed")
	assert.Equal(t, session.StateClosed, o.SessionState())
	assert.Len(t, srv.Calls(pavloviatest.RouteClose), 1)
}
