// audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const outcomeIndex = "pipeline-outcomes"

type Repository interface {
	Index(ctx context.Context, record OutcomeRecord) error
	Query(ctx context.Context, from, to time.Time, environment, state string) ([]OutcomeRecord, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// Index appends one outcome record to the audit trail.
func (r *ElasticsearchRepository) Index(ctx context.Context, record OutcomeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      outcomeIndex,
		DocumentID: record.RunID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// Query searches outcomes within a time frame, optionally filtered by
// environment and terminal state.
func (r *ElasticsearchRepository) Query(ctx context.Context, from, to time.Time, environment, state string) ([]OutcomeRecord, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}

	if environment != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"environment": environment,
			},
		})
	}
	if state != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"state": state,
			},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(outcomeIndex),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				Source OutcomeRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("error decoding search response: %w", err)
	}

	records := make([]OutcomeRecord, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		records[i] = hit.Source
	}
	return records, nil
}
