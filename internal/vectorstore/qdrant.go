package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// originalIDField stores the caller's document/chunk ID in the point
// payload, since Qdrant point IDs must be a UUID or unsigned integer.
const originalIDField = "_original_id"

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrant connects to a Qdrant instance over its gRPC API (default port
// 6334) and ensures the target collection exists with the configured
// dimensionality and distance metric.
func NewQdrant(ctx context.Context, dsn, collection string, dimensions int, metric string) (Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	qs := &qdrantStore{client: client, collection: collection, dimension: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}
	if err := qs.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qs, nil
}

func (q *qdrantStore) Dimension() int { return q.dimension }

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}

	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}

	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointIDFor(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (q *qdrantStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	uuidStr, remapped := pointIDFor(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if remapped {
		payload[originalIDField] = id
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantStore) Delete(ctx context.Context, id string) error {
	uuidStr, _ := pointIDFor(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	return err
}

func (q *qdrantStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var qFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qFilter = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		if id == "" {
			id = hit.Id.String()
		}
		metadata := make(map[string]string, len(hit.Payload))
		for k, v := range hit.Payload {
			if k == originalIDField {
				id = v.GetStringValue()
				continue
			}
			metadata[k] = v.GetStringValue()
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

func (q *qdrantStore) Close() error { return q.client.Close() }
