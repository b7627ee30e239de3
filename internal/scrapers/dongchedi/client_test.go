package dongchedi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"carparams/internal/components/chrono"
	"carparams/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns queued responses per id, the last response of a
// queue is repeated once the queue is drained.
type scriptedFetcher struct {
	mutex     sync.Mutex
	responses map[int][]scriptedResponse
	calls     map[int]int
}

type scriptedResponse struct {
	page Page
	err  error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		responses: map[int][]scriptedResponse{},
		calls:     map[int]int{},
	}
}

func (f *scriptedFetcher) add(id int, page Page, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	page.ID = id
	f.responses[id] = append(f.responses[id], scriptedResponse{page: page, err: err})
}

func (f *scriptedFetcher) Fetch(ctx context.Context, id int) (Page, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	queue := f.responses[id]
	call := f.calls[id]
	f.calls[id]++
	if len(queue) == 0 {
		return Page{}, errors.New("connection refused")
	}
	if call >= len(queue) {
		call = len(queue) - 1
	}
	return queue[call].page, queue[call].err
}

func (f *scriptedFetcher) callCount(id int) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls[id]
}

func newTestClient(fetcher Fetcher, clock chrono.TimeAPI, tel telemetry.API) Client {
	return NewClient(
		fetcher,
		newTestExtractor(tel),
		ClientOptions{Retry: RetryOptions{Attempts: 3, BackoffBase: 0.5}},
		clock,
		tel,
	)
}

func fakeClock() *chrono.FakeTime {
	return chrono.NewFakeTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
}

func TestFetchAndExtractSuccess(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.add(1, Page{StatusCode: 200, Body: mustRead(t, "testdata/params_two_models.html")}, nil)
	clock := fakeClock()

	outcome, err := newTestClient(fetcher, clock, &telemetry.Recorder{}).FetchAndExtract(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, outcome.Vehicles, 2)
	require.Equal(t, 1, outcome.Attempts)
	for _, v := range outcome.Vehicles {
		require.Equal(t, 1, v.SourceID)
	}
	require.Empty(t, clock.Sleeps())
}

func TestFetchAndExtractRetriesThenSucceeds(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.add(7, Page{}, errors.New("i/o timeout"))
	fetcher.add(7, Page{StatusCode: 503, Body: "busy"}, nil)
	fetcher.add(7, Page{StatusCode: 200, Body: mustRead(t, "testdata/params_two_models.html")}, nil)
	clock := fakeClock()

	outcome, err := newTestClient(fetcher, clock, &telemetry.Recorder{}).FetchAndExtract(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, outcome.Vehicles, 2)
	require.Equal(t, 3, outcome.Attempts)
	require.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, clock.Sleeps())
}

func TestFetchAndExtractExhaustsRetries(t *testing.T) {
	table := []struct {
		name string
		page Page
		err  error
		want error
	}{
		{name: "network", err: errors.New("connection reset")},
		{name: "status", page: Page{StatusCode: 404, Body: "参数配置"}, want: ErrStatus},
		{name: "marker missing", page: Page{StatusCode: 200, Body: "<html>验证码</html>"}, want: ErrMarkerMissing},
		{name: "no table", page: Page{StatusCode: 200, Body: mustRead(t, "testdata/params_missing_table.html")}, want: ErrNoTable},
		{
			name: "no named model",
			page: Page{StatusCode: 200, Body: `参数配置<div class="table_head__FNAvn">
				<div class="table_is-head-col__1sAQG">对比项</div>
				<div class="table_is-head-col__1sAQG">?</div>
			</div>`},
			want: ErrNoNamedModel,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			fetcher := newScriptedFetcher()
			fetcher.add(3, row.page, row.err)
			clock := fakeClock()
			rec := &telemetry.Recorder{}

			outcome, err := newTestClient(fetcher, clock, rec).FetchAndExtract(context.Background(), 3)
			require.NoError(t, err)
			require.Nil(t, outcome.Vehicles)
			require.Equal(t, 3, outcome.Attempts)
			require.Error(t, outcome.Err)
			if row.want != nil {
				require.ErrorIs(t, outcome.Err, row.want)
			}
			require.Equal(t, 3, fetcher.callCount(3))
			require.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, clock.Sleeps())
			require.True(t, rec.Has("warning", report_client_retry))
			if row.want == ErrNoTable {
				require.True(t, rec.Has("debug", report_client_no_data))
				require.False(t, rec.Has("debug", report_client_attempt))
			} else {
				require.True(t, rec.Has("debug", report_client_attempt))
				require.False(t, rec.Has("debug", report_client_no_data))
			}
		})
	}
}

type unlabelledRowFetcher struct{}

func (unlabelledRowFetcher) Fetch(ctx context.Context, id int) (Page, error) {
	return Page{ID: id, StatusCode: 200, Body: `<h2>参数配置</h2>
	<div class="table_head__FNAvn">
		<div class="table_is-head-col__1sAQG">对比项</div>
		<div class="table_is-head-col__1sAQG"><a class="cell_car__28WzZ">A</a></div>
	</div>
	<div class="table_root__14vH_">基本信息</div>
	<div class="table_root__14vH_">
		<div class="table_row__yVX1h" data-row-anchor="mystery">
			<div class="cell_normal__37nRi">1</div>
		</div>
	</div>`}, nil
}

// panicOnWarning turns the extractor's warning for an unlabelled row into
// an unexpected failure.
type panicOnWarning struct {
	*telemetry.Recorder
}

func (panicOnWarning) ReportWarning(id string, params ...any) {
	panic("warning: " + id)
}

func TestFetchAndExtractDoesNotRetryUnexpectedFailures(t *testing.T) {
	rec := &telemetry.Recorder{}
	clock := fakeClock()
	client := NewClient(
		unlabelledRowFetcher{},
		NewExtractor(DefaultSelectors(), nil, panicOnWarning{rec}),
		ClientOptions{Retry: RetryOptions{Attempts: 3, BackoffBase: 0.5}},
		clock,
		rec,
	)

	outcome, err := client.FetchAndExtract(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Attempts)
	require.Nil(t, outcome.Vehicles)

	var extractErr *ExtractError
	require.ErrorAs(t, outcome.Err, &extractErr)
	require.True(t, rec.Has("broken", report_client_extract))
	require.Empty(t, clock.Sleeps())
}

func TestFetchAndExtractCancelled(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.add(5, Page{}, errors.New("connection reset"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(fetcher, fakeClock(), &telemetry.Recorder{}).FetchAndExtract(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	retry := RetryOptions{Attempts: 4, BackoffBase: 0.5}
	require.Equal(t, time.Second, retry.Backoff(0))
	require.Equal(t, 500*time.Millisecond, retry.Backoff(1))
	require.Equal(t, 250*time.Millisecond, retry.Backoff(2))
}

func TestHTTPFetcher(t *testing.T) {
	var gotPath, gotUA, gotLang, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotReferer = r.Header.Get("Referer")
		if r.URL.Path == "/auto/params-carIds-x-404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("参数配置"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(HTTPOptions{
		URLTemplate: server.URL + "/auto/params-carIds-x-{id}",
		Timeout:     5 * time.Second,
	}, &telemetry.Recorder{})

	page, err := fetcher.Fetch(context.Background(), 4821)
	require.NoError(t, err)
	require.True(t, page.OK())
	require.Equal(t, 4821, page.ID)
	require.Equal(t, "参数配置", page.Body)
	require.Equal(t, "/auto/params-carIds-x-4821", gotPath)
	require.Equal(t, DefaultUserAgent, gotUA)
	require.Equal(t, DefaultAcceptLanguage, gotLang)
	require.Equal(t, server.URL+"/auto/params-carIds-x-", gotReferer)

	page, err = fetcher.Fetch(context.Background(), 404)
	require.NoError(t, err)
	require.False(t, page.OK())
	require.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestHTTPFetcherWritesTranscripts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<h1>参数配置</h1>"))
	}))
	defer server.Close()

	rec := &telemetry.Recorder{}
	dir := filepath.Join(t.TempDir(), "dump")
	output, err := telemetry.NewDirectoryOutput(dir, rec)
	require.NoError(t, err)

	fetcher := NewHTTPFetcher(HTTPOptions{
		URLTemplate: server.URL + "/{id}",
		Timeout:     5 * time.Second,
		Output:      output,
	}, rec)

	for _, id := range []int{1, 2} {
		page, err := fetcher.Fetch(context.Background(), id)
		require.NoError(t, err)
		require.True(t, page.OK())
		require.Equal(t, "<h1>参数配置</h1>", page.Body)
	}

	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "GET "+server.URL+"/1")
	require.Contains(t, string(contents), "<NO BODY AVAILABLE>")
	require.Contains(t, string(contents), "参数配置")

	_, err = os.Stat(filepath.Join(dir, "2.txt"))
	require.NoError(t, err)
	require.False(t, rec.Has("warning", "resty.dump"))
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "https://www.dongchedi.com/auto/params-carIds-x-12", PageURL(DefaultURLTemplate, 12))
}
