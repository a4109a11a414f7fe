package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/qubic/batch-transfer-engine/entities"
)

type Client struct {
	index    string
	esClient *elasticsearch.Client
}

func NewClient(address, index string, timeout time.Duration) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{address},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %v", err)
	}

	return &Client{
		index:    index,
		esClient: esClient,
	}, nil
}

func (es *Client) PublishRecords(_ context.Context, records []entities.BatchRecord) error {
	var buf bytes.Buffer

	for _, record := range records {
		// Metadata line for each document
		meta := []byte(fmt.Sprintf(`{ "index": { "_index": "%s", "_id": "%d" } }%s`, es.index, record.Id, "\n"))
		buf.Write(meta)

		// Serialize the record to JSON
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("error serializing batch record: %w", err)
		}
		buf.Write(data)
		buf.Write([]byte("\n")) // Add a newline between documents
	}

	// Send the bulk request
	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()), es.esClient.Bulk.WithRefresh("true"))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	// Check response for errors
	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	return nil
}
