// internal/audit/elasticsearch_sink.go
package audit

import (
	"context"
	"encoding/json"
)

// Indexer is satisfied by database.ElasticsearchClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, body []byte) error
}

// ElasticsearchSink indexes each event as a document keyed by event id.
type ElasticsearchSink struct {
	client Indexer
	index  string
}

func NewElasticsearchSink(client Indexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Record(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.IndexDocument(ctx, s.index, event.ID, body)
}
