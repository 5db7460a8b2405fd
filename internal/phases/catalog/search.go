package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"home-planner/internal/models"
)

// Searcher resolves a free-text query to product ids for one submission.
type Searcher interface {
	Search(ctx context.Context, submissionID, query string) ([]string, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
}

// ESIndex keeps each submission's products in Elasticsearch for full-text search.
type ESIndex struct {
	client *elasticsearch.Client
	index  string
	logger Logger
}

func NewESIndex(client *elasticsearch.Client, index string, log Logger) *ESIndex {
	if index == "" {
		index = "planner-products"
	}
	return &ESIndex{client: client, index: index, logger: log}
}

type productDoc struct {
	SubmissionID string  `json:"submission_id"`
	ProductID    string  `json:"product_id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	StoreName    string  `json:"store_name"`
	StoreCity    string  `json:"store_city"`
	Price        float64 `json:"price"`
	Rating       float64 `json:"rating"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "submission_id": {"type": "keyword"},
      "product_id":    {"type": "keyword"},
      "title":         {"type": "text"},
      "category":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "store_name":    {"type": "text"},
      "store_city":    {"type": "keyword"},
      "price":         {"type": "double"},
      "rating":        {"type": "float"}
    }
  }
}`

// EnsureIndex creates the products index with its mapping if it does not exist.
func (x *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index check failed: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = x.client.Indices.Create(
		x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch create index error: %s", res.Status())
	}
	return nil
}

// IndexProducts bulk-indexes products under submissionID. Document ids are
// "<submission>:<product>" so re-indexing a submission overwrites in place.
func (x *ESIndex) IndexProducts(ctx context.Context, submissionID string, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, p := range products {
		meta := map[string]map[string]string{
			"index": {"_index": x.index, "_id": submissionID + ":" + p.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		doc := productDoc{
			SubmissionID: submissionID,
			ProductID:    p.ID,
			Title:        p.Title,
			Category:     p.Category,
			StoreName:    p.Store.Name,
			StoreCity:    p.Store.City,
			Price:        p.Price,
			Rating:       p.Rating,
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	res, err := x.client.Bulk(
		bytes.NewReader(body.Bytes()),
		x.client.Bulk.WithContext(ctx),
		x.client.Bulk.WithIndex(x.index),
		x.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk error: %s", res.Status())
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		return fmt.Errorf("elasticsearch bulk reported item errors")
	}

	if x.logger != nil {
		x.logger.Info("indexed products", map[string]interface{}{
			"submissionId": submissionID,
			"count":        len(products),
			"index":        x.index,
		})
	}
	return nil
}

// Search runs a multi_match over title, category and store name within one submission.
func (x *ESIndex) Search(ctx context.Context, submissionID, query string) ([]string, error) {
	q := map[string]interface{}{
		"size":    MaxPageSize,
		"_source": []string{"product_id"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"title^2", "category", "store_name"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"submission_id": submissionID},
				},
			},
		},
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(strings.NewReader(string(payload))),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("elasticsearch search error: %s: %s", res.Status(), strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ProductID string `json:"product_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.Source.ProductID)
	}
	return ids, nil
}
