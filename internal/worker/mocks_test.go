package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragline/features/chunk"
	"ragline/features/job"
	"ragline/internal/worker"
)

// Mocks

type MockSourceStore struct{ mock.Mock }

func (m *MockSourceStore) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockSourceStore) SetFetchResult(ctx context.Context, id string, httpStatus int, contentType string) error {
	args := m.Called(ctx, id, httpStatus, contentType)
	return args.Error(0)
}

func (m *MockSourceStore) SetExtraction(ctx context.Context, id, quality string, wordCount int) error {
	args := m.Called(ctx, id, quality, wordCount)
	return args.Error(0)
}

func (m *MockSourceStore) SetWordCount(ctx context.Context, id string, wordCount int) error {
	args := m.Called(ctx, id, wordCount)
	return args.Error(0)
}

func (m *MockSourceStore) SetContentHash(ctx context.Context, id, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockSourceStore) SetError(ctx context.Context, id, status, message string) error {
	args := m.Called(ctx, id, status, message)
	return args.Error(0)
}

type MockJobQueue struct{ mock.Mock }

func (m *MockJobQueue) Enqueue(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

type MockChunkInserter struct{ mock.Mock }

func (m *MockChunkInserter) Insert(ctx context.Context, c *chunk.Chunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockChunkInserter) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorIndex struct{ mock.Mock }

func (m *MockVectorIndex) StoreVector(ctx context.Context, v worker.StoredVector) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVectorIndex) FindNearDuplicate(ctx context.Context, embedding []float32, corpusID string, cosineThreshold float32) (string, error) {
	args := m.Called(ctx, embedding, corpusID, cosineThreshold)
	return args.String(0), args.Error(1)
}

func (m *MockVectorIndex) DeleteByChunkID(ctx context.Context, chunkID string) error {
	args := m.Called(ctx, chunkID)
	return args.Error(0)
}

type MockJobStore struct{ mock.Mock }

func (m *MockJobStore) PickNext(ctx context.Context, workerID string) (*job.Job, error) {
	args := m.Called(ctx, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *MockJobStore) MarkDone(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockJobStore) MarkRetry(ctx context.Context, jobID string, errMsg string) (bool, error) {
	args := m.Called(ctx, jobID, errMsg)
	return args.Bool(0), args.Error(1)
}

type MockStageRunner struct{ mock.Mock }

func (m *MockStageRunner) Run(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

type MockDrainer struct{ mock.Mock }

func (m *MockDrainer) Drain(ctx context.Context, maxJobs int) []job.RunResult {
	args := m.Called(ctx, maxJobs)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]job.RunResult)
}

type MockPendingCounter struct{ mock.Mock }

func (m *MockPendingCounter) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}
