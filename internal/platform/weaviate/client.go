// Package weaviate stores knowledge chunks in a Weaviate class and runs
// hybrid (vector + BM25) queries against it with the same hard filters the
// relational index applies.
package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const DefaultClass = "KnowledgeChunk"

type Config struct {
	Host   string
	Scheme string
	Class  string
}

// Object is the indexed projection of a chunk.
type Object struct {
	ID              uuid.UUID
	Content         string
	Topic           string
	DifficultyLevel int
	SensoryLoad     float64
	FleschScore     float64
	Vector          []float32
}

type HybridQuery struct {
	Text          string
	Vector        []float32
	Alpha         float32
	MaxDifficulty int
	SensoryCap    float64
	MinFlesch     float64
	Limit         int
}

type Client struct {
	c     *weaviate.Client
	class string
	log   *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("weaviate host required")
	}
	scheme := strings.TrimSpace(cfg.Scheme)
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme, host = "https", strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		scheme, host = "http", strings.TrimPrefix(host, "http://")
	}
	if scheme == "" {
		scheme = "http"
	}
	class := strings.TrimSpace(cfg.Class)
	if class == "" {
		class = DefaultClass
	}
	c, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{c: c, class: class, log: log.With("client", "Weaviate", "class", class)}, nil
}

func (c *Client) Class() string { return c.class }

func (c *Client) schema() *models.Class {
	filterable := true
	return &models.Class{
		Class:       c.class,
		Description: "Retrievable learning content.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &filterable},
			{Name: "content", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "topic", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &filterable},
			{Name: "difficultyLevel", DataType: []string{"int"}, IndexFilterable: &filterable},
			{Name: "sensoryLoad", DataType: []string{"number"}, IndexFilterable: &filterable},
			{Name: "fleschScore", DataType: []string{"number"}, IndexFilterable: &filterable},
		},
	}
}

// EnsureSchema creates the class when it does not exist yet.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.c.Schema().ClassGetter().WithClassName(c.class).Do(ctx); err == nil {
		return nil
	}
	c.log.Info("Creating weaviate class")
	if err := c.c.Schema().ClassCreator().WithClass(c.schema()).Do(ctx); err != nil {
		return unavailable("weaviate.ensure_schema", err)
	}
	return nil
}

// Upsert writes the object under the chunk's own id.
func (c *Client) Upsert(ctx context.Context, obj Object) error {
	if obj.ID == uuid.Nil {
		return domain.InvalidArgument("weaviate.upsert", "object id required")
	}
	props := map[string]interface{}{
		"chunkId":         obj.ID.String(),
		"content":         obj.Content,
		"topic":           obj.Topic,
		"difficultyLevel": obj.DifficultyLevel,
		"sensoryLoad":     obj.SensoryLoad,
		"fleschScore":     obj.FleschScore,
	}
	id := obj.ID.String()
	exists, err := c.c.Data().Checker().WithClassName(c.class).WithID(id).Do(ctx)
	if err != nil {
		return unavailable("weaviate.upsert", err)
	}
	if exists {
		err = c.c.Data().Updater().
			WithClassName(c.class).
			WithID(id).
			WithProperties(props).
			WithVector(obj.Vector).
			Do(ctx)
	} else {
		_, err = c.c.Data().Creator().
			WithClassName(c.class).
			WithID(id).
			WithProperties(props).
			WithVector(obj.Vector).
			Do(ctx)
	}
	if err != nil {
		return unavailable("weaviate.upsert", err)
	}
	return nil
}

// Hybrid returns chunk ids ordered by Weaviate's fused hybrid score. Alpha
// weights the vector side (1 = pure vector, 0 = pure BM25).
func (c *Client) Hybrid(ctx context.Context, q HybridQuery) ([]uuid.UUID, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"difficultyLevel"}).
				WithOperator(filters.LessThanEqual).
				WithValueInt(int64(q.MaxDifficulty)),
			filters.Where().
				WithPath([]string{"sensoryLoad"}).
				WithOperator(filters.LessThanEqual).
				WithValueNumber(q.SensoryCap),
			filters.Where().
				WithPath([]string{"fleschScore"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueNumber(q.MinFlesch),
		})

	hybrid := c.c.GraphQL().HybridArgumentBuilder().
		WithQuery(q.Text).
		WithAlpha(q.Alpha)
	if len(q.Vector) > 0 {
		hybrid = hybrid.WithVector(q.Vector)
	}

	result, err := c.c.GraphQL().Get().
		WithClassName(c.class).
		WithFields(graphql.Field{Name: "chunkId"}).
		WithWhere(where).
		WithHybrid(hybrid).
		WithLimit(q.Limit).
		Do(ctx)
	if err != nil {
		return nil, unavailable("weaviate.hybrid", err)
	}
	if len(result.Errors) > 0 {
		return nil, unavailable("weaviate.hybrid", fmt.Errorf("%s", result.Errors[0].Message))
	}
	return parseIDs(result.Data, c.class), nil
}

func parseIDs(data map[string]models.JSONObject, class string) []uuid.UUID {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		s, _ := m["chunkId"].(string)
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func unavailable(op string, err error) error {
	return domain.NewError(domain.CodeUnavailable, op, err.Error(), err)
}
