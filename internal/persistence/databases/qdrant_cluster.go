package databases

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// qdrantPayloadIDField stores the caller's original content-item ID,
// since Qdrant point IDs must be UUIDs or positive integers.
const qdrantPayloadIDField = "_original_id"

type qdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewVectorStore returns a Qdrant-backed near-duplicate index when
// cfg.Enabled, or an in-memory cosine-search fallback otherwise. The trend
// detector treats both identically through persistence.VectorStore.
func NewVectorStore(ctx context.Context, cfg config.QdrantConfig) (persistence.VectorStore, error) {
	if !cfg.Enabled {
		return newMemoryVectorStore(cfg.Dimensions), nil
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	parsedURL, err := url.Parse(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant address: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant address: %w", err)
	}
	qcfg := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		qcfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		qcfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	qv := &qdrantVectorStore{client: client, collection: cfg.Collection, dimension: cfg.Dimensions}
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVectorStore) ensureCollection(ctx context.Context) error {
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
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func qdrantPointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *qdrantVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	pointUUID := qdrantPointID(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if pointUUID != id {
		payload[qdrantPayloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantVectorStore) Delete(ctx context.Context, id string) error {
	pointUUID := qdrantPointID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID)),
	})
	return err
}

func (q *qdrantVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]persistence.VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for fk, fv := range filter {
			must = append(must, qdrant.NewMatch(fk, fv))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	results := make([]persistence.VectorResult, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		originalID := ""
		if hit.Payload != nil {
			for pk, pv := range hit.Payload {
				if pk == qdrantPayloadIDField {
					originalID = pv.GetStringValue()
					continue
				}
				metadata[pk] = pv.GetStringValue()
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		results = append(results, persistence.VectorResult{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return results, nil
}

func (q *qdrantVectorStore) Dimension() int { return q.dimension }

func (q *qdrantVectorStore) Close() error { return q.client.Close() }

// --- Memory fallback: brute-force cosine similarity ---

type memVectorEntry struct {
	vector   []float32
	metadata map[string]string
}

type memVectorStore struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]memVectorEntry
}

func newMemoryVectorStore(dimension int) *memVectorStore {
	return &memVectorStore{dimension: dimension, entries: make(map[string]memVectorEntry)}
}

func (s *memVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vec := make([]float32, len(vector))
	copy(vec, vector)
	s.entries[id] = memVectorEntry{vector: vec, metadata: metadata}
	return nil
}

func (s *memVectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *memVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]persistence.VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]persistence.VectorResult, 0, len(s.entries))
	for id, entry := range s.entries {
		if !matchesFilter(entry.metadata, filter) {
			continue
		}
		results = append(results, persistence.VectorResult{
			ID:       id,
			Score:    cosineSimilarity(vector, entry.vector),
			Metadata: entry.metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *memVectorStore) Dimension() int { return s.dimension }

func (s *memVectorStore) Close() error { return nil }
