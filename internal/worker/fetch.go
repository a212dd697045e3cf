package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ragline/features/job"
	"ragline/features/source"
)

// FetchHandler downloads the source document. It owns the PENDING→FETCHED
// transition; HTTP errors and binary content types terminate the source
// without a follow-on job.
type FetchHandler struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
	Sources   SourceStore
	Jobs      JobQueue
}

func (h *FetchHandler) Handle(ctx context.Context, j *job.Job, src *source.Source) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		// Malformed URL: nothing a retry can fix.
		return h.Sources.SetError(ctx, src.ID, source.StatusFailed, fmt.Sprintf("invalid url: %v", err))
	}
	req.Header.Set("User-Agent", h.UserAgent)

	res, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	defer res.Body.Close()

	contentType := res.Header.Get("Content-Type")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if err := h.Sources.SetFetchResult(ctx, src.ID, res.StatusCode, contentType); err != nil {
			return err
		}
		slog.InfoContext(ctx, "source failed with http error", "source_id", src.ID, "status", res.StatusCode)
		return h.Sources.SetError(ctx, src.ID, source.StatusFailed, fmt.Sprintf("HTTP %d", res.StatusCode))
	}

	if !isTextual(contentType) {
		// Binary/PDF extraction is out of scope.
		if err := h.Sources.SetFetchResult(ctx, src.ID, res.StatusCode, contentType); err != nil {
			return err
		}
		if err := h.Sources.SetExtraction(ctx, src.ID, source.QualityNone, 0); err != nil {
			return err
		}
		slog.InfoContext(ctx, "source skipped, unsupported content type", "source_id", src.ID, "content_type", contentType)
		return h.Sources.SetError(ctx, src.ID, source.StatusSkipped, fmt.Sprintf("unsupported content type %q", contentType))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, h.MaxBytes))
	if err != nil {
		return fmt.Errorf("read body of %s: %w", src.URL, err)
	}

	if err := h.Sources.SetFetchResult(ctx, src.ID, res.StatusCode, contentType); err != nil {
		return err
	}
	if err := h.Sources.UpdateStatus(ctx, src.ID, source.StatusFetched); err != nil {
		return err
	}

	payload, err := json.Marshal(ExtractPayload{RawText: string(body)})
	if err != nil {
		return err
	}
	return h.Jobs.Enqueue(ctx, &job.Job{
		CorpusID: j.CorpusID,
		SourceID: src.ID,
		Type:     job.TypeExtract,
		Payload:  payload,
	})
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text") || strings.Contains(ct, "html") || strings.Contains(ct, "json")
}
