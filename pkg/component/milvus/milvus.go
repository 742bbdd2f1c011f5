// Package milvus wraps the Milvus SDK client for the book chunk
// collections: schema management, idempotent upserts keyed by chunk id,
// and filtered similarity search.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *Options
}

// New connects to Milvus using the given options.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying SDK client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// MetaField describes a scalar field of a collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VarChar only
}

// CollectionSchema describes a chunk collection: a string primary key,
// one float vector field, and scalar payload fields.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	PKField     string
	PKMaxLen    int
	MetaFields  []MetaField

	// HNSW index parameters for the vector field.
	HNSWM              int
	HNSWEfConstruction int
}

// EnsureCollection creates the collection with an HNSW cosine index if it
// does not exist, then loads it. Existing collections are left untouched.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.loadCollection(ctx, schema.Name)
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description)

	collSchema.WithField(
		entity.NewField().
			WithName(schema.PKField).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(schema.PKMaxLen)).
			WithIsPrimaryKey(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)
	for _, f := range schema.MetaFields {
		field := entity.NewField().
			WithName(f.Name).
			WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		collSchema.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewHNSWIndex(entity.COSINE, schema.HNSWM, schema.HNSWEfConstruction)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.loadCollection(ctx, schema.Name)
}

func (c *Client) loadCollection(ctx context.Context, name string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// UpsertData carries one batch of points. Metadata slices must be the same
// length as IDs and Embeddings.
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Upsert writes points keyed by their string id, replacing existing points
// with the same id, then flushes so they become searchable.
func (c *Client) Upsert(ctx context.Context, collectionName, pkField string, data *UpsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.Embeddings) != len(data.IDs) {
		return fmt.Errorf("id/embedding count mismatch: %d vs %d", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns, column.NewColumnVarChar(pkField, data.IDs))
	columns = append(columns, column.NewColumnFloatVector("embedding", len(data.Embeddings[0]), data.Embeddings))

	for name, values := range data.Metadata {
		if len(values) != len(data.IDs) {
			return fmt.Errorf("metadata %q count mismatch: %d vs %d", name, len(values), len(data.IDs))
		}
		switch values[0].(type) {
		case string:
			vals := make([]string, len(values))
			for i, v := range values {
				vals[i] = v.(string)
			}
			columns = append(columns, column.NewColumnVarChar(name, vals))
		case int64:
			vals := make([]int64, len(values))
			for i, v := range values {
				vals[i] = v.(int64)
			}
			columns = append(columns, column.NewColumnInt64(name, vals))
		default:
			return fmt.Errorf("unsupported metadata type %T for field %s", values[0], name)
		}
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search runs a cosine similarity search. filter is an optional Milvus
// scalar expression (e.g. `chapter_number == 3`).
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filter string, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(collectionName, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField("embedding").
		WithOutputFields(outputFields...)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	hits := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		hit := SearchResult{
			Score:    results[0].Scores[i],
			Metadata: make(map[string]any),
		}
		if idCol, ok := results[0].IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				hit.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				hit.Metadata[col.Name()] = col.Data()[i]
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteByIDs removes points by their string ids.
func (c *Client) DeleteByIDs(ctx context.Context, collectionName, pkField string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithStringIDs(pkField, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// CollectionCount returns the row count of a collection.
func (c *Client) CollectionCount(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// Ping verifies connectivity by listing collections.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	return err
}
