package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ragline/features/job"
	"ragline/features/source"
	"ragline/internal/worker"
)

func TestFetchHandler_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ragline-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>hello world</p></body></html>"))
	}))
	defer srv.Close()

	sources := new(MockSourceStore)
	jobs := new(MockJobQueue)
	h := &worker.FetchHandler{
		Client:    srv.Client(),
		UserAgent: "ragline-test/1.0",
		MaxBytes:  500000,
		Sources:   sources,
		Jobs:      jobs,
	}

	sources.On("SetFetchResult", mock.Anything, "src1", 200, "text/html; charset=utf-8").Return(nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusFetched).Return(nil)
	jobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		var p worker.ExtractPayload
		json.Unmarshal(j.Payload, &p)
		return j.Type == job.TypeExtract && j.SourceID == "src1" && j.CorpusID == "c1" &&
			strings.Contains(p.RawText, "hello world")
	})).Return(nil)

	err := h.Handle(context.Background(),
		&job.Job{CorpusID: "c1", SourceID: "src1", Type: job.TypeFetch},
		&source.Source{ID: "src1", CorpusID: "c1", URL: srv.URL})

	assert.NoError(t, err)
	sources.AssertExpectations(t)
	jobs.AssertExpectations(t)
}

func TestFetchHandler_HTTPErrorFailsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	sources := new(MockSourceStore)
	jobs := new(MockJobQueue)
	h := &worker.FetchHandler{Client: srv.Client(), MaxBytes: 500000, Sources: sources, Jobs: jobs}

	sources.On("SetFetchResult", mock.Anything, "src1", 404, mock.Anything).Return(nil)
	sources.On("SetError", mock.Anything, "src1", source.StatusFailed, "HTTP 404").Return(nil)

	err := h.Handle(context.Background(),
		&job.Job{CorpusID: "c1", SourceID: "src1", Type: job.TypeFetch},
		&source.Source{ID: "src1", CorpusID: "c1", URL: srv.URL})

	assert.NoError(t, err)
	sources.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestFetchHandler_BinaryContentSkipsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	sources := new(MockSourceStore)
	jobs := new(MockJobQueue)
	h := &worker.FetchHandler{Client: srv.Client(), MaxBytes: 500000, Sources: sources, Jobs: jobs}

	sources.On("SetFetchResult", mock.Anything, "src1", 200, "application/pdf").Return(nil)
	sources.On("SetExtraction", mock.Anything, "src1", source.QualityNone, 0).Return(nil)
	sources.On("SetError", mock.Anything, "src1", source.StatusSkipped, mock.Anything).Return(nil)

	err := h.Handle(context.Background(),
		&job.Job{CorpusID: "c1", SourceID: "src1", Type: job.TypeFetch},
		&source.Source{ID: "src1", CorpusID: "c1", URL: srv.URL})

	assert.NoError(t, err)
	sources.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestFetchHandler_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	sources := new(MockSourceStore)
	jobs := new(MockJobQueue)
	h := &worker.FetchHandler{Client: http.DefaultClient, MaxBytes: 500000, Sources: sources, Jobs: jobs}

	err := h.Handle(context.Background(),
		&job.Job{CorpusID: "c1", SourceID: "src1", Type: job.TypeFetch},
		&source.Source{ID: "src1", CorpusID: "c1", URL: srv.URL})

	assert.Error(t, err)
	sources.AssertNotCalled(t, "SetError", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchHandler_BodyTruncatedAtMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer srv.Close()

	sources := new(MockSourceStore)
	jobs := new(MockJobQueue)
	h := &worker.FetchHandler{Client: srv.Client(), MaxBytes: 100, Sources: sources, Jobs: jobs}

	sources.On("SetFetchResult", mock.Anything, "src1", 200, "text/plain").Return(nil)
	sources.On("UpdateStatus", mock.Anything, "src1", source.StatusFetched).Return(nil)
	jobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		var p worker.ExtractPayload
		json.Unmarshal(j.Payload, &p)
		return len(p.RawText) == 100
	})).Return(nil)

	err := h.Handle(context.Background(),
		&job.Job{CorpusID: "c1", SourceID: "src1", Type: job.TypeFetch},
		&source.Source{ID: "src1", CorpusID: "c1", URL: srv.URL})

	assert.NoError(t, err)
	jobs.AssertExpectations(t)
}
