package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"ragline/internal/vector"
	"ragline/internal/worker"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreVector(ctx context.Context, v worker.StoredVector) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithProperties(map[string]interface{}{
			"chunkId":     v.ChunkID,
			"corpusId":    v.CorpusID,
			"sourceId":    v.SourceID,
			"contentHash": v.ContentHash,
		}).
		WithVector(v.Vector).
		Do(ctx)
	return err
}

// FindNearDuplicate returns the chunkId of the nearest existing vector in
// the corpus whose cosine similarity meets the threshold, or "" when none
// does. Weaviate certainty is (cosine+1)/2, so a 0.92 cosine threshold
// queries at 0.96 certainty.
func (s *Store) FindNearDuplicate(ctx context.Context, embedding []float32, corpusID string, cosineThreshold float32) (string, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(embedding).
		WithCertainty((cosineThreshold + 1) / 2)

	where := filters.Where().
		WithPath([]string{"corpusId"}).
		WithOperator(filters.Equal).
		WithValueString(corpusID)

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(1).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return "", err
	}
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	hits, ok := data[vector.ClassName].([]interface{})
	if !ok || len(hits) == 0 {
		return "", nil
	}
	props, ok := hits[0].(map[string]interface{})
	if !ok {
		return "", nil
	}
	chunkID, _ := props["chunkId"].(string)
	return chunkID, nil
}

// DeleteByChunkID removes the vector(s) stored under one chunk id. Used to
// clean up a vector whose chunk row did not survive its transaction.
func (s *Store) DeleteByChunkID(ctx context.Context, chunkID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"chunkId"}).
			WithOperator(filters.Equal).
			WithValueString(chunkID)).
		Do(ctx)
	return err
}

func (s *Store) DeleteBySource(ctx context.Context, corpusID, sourceID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{
				filters.Where().
					WithPath([]string{"corpusId"}).
					WithOperator(filters.Equal).
					WithValueString(corpusID),
				filters.Where().
					WithPath([]string{"sourceId"}).
					WithOperator(filters.Equal).
					WithValueString(sourceID),
			})).
		Do(ctx)
	return err
}
