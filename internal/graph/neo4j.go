package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/webgraph-io/webgraph/internal/crawl"
)

// VectorIndexName is the Neo4j vector index over Webpage.embeddings.
const VectorIndexName = "webpage-embeddings"

// cypherUpsert merges each record by URL, overwrites all scalar properties
// (last-write-wins), and merges edges so re-asserting one is a no-op.
const cypherUpsert = `
UNWIND $webpages AS webpage

MERGE (w:Webpage {url: webpage.url})
SET
    w.status = webpage.status,
    w.title = webpage.title,
    w.is_404 = webpage.is_404,
    w.keywords = webpage.keywords,
    w.embeddings = webpage.embeddings,
    w.summary = webpage.summary

FOREACH (link IN coalesce(webpage.links, []) |
    MERGE (l:Webpage {url: link})
    MERGE (w)-[:LINKS_TO]->(l)
)

FOREACH (redirect IN coalesce(webpage.redirects, []) |
    MERGE (r:Webpage {url: redirect})
    MERGE (w)-[:REDIRECTS_TO]->(r)
)

FOREACH (keyword IN coalesce(webpage.keywords, []) |
    MERGE (k:Keyword {keyword: keyword})
    MERGE (w)-[:HAS_KEYWORD]->(k)
)
`

const cypherVectorSearch = `
CALL db.index.vector.queryNodes($index, $limit, $embedding)
YIELD node, score
RETURN node.url AS url, node.title AS title, node.summary AS summary, score
ORDER BY score DESC
`

// cypherKeywordSearch scores each matching page by the number of
// (keyword x field) hits, each field counting at most once per keyword.
const cypherKeywordSearch = `
WITH $keywords AS keywords
MATCH (w:Webpage)
WHERE
  ANY(keyword IN keywords WHERE
    toLower(w.title) CONTAINS toLower(keyword) OR
    ANY(k IN w.keywords WHERE toLower(k) CONTAINS toLower(keyword)) OR
    toLower(w.summary) CONTAINS toLower(keyword)
  )
WITH w, keywords,
  REDUCE(score = 0, keyword IN keywords |
    score +
    CASE WHEN toLower(w.title) CONTAINS toLower(keyword) THEN 1 ELSE 0 END +
    CASE WHEN ANY(k IN w.keywords WHERE toLower(k) CONTAINS toLower(keyword)) THEN 1 ELSE 0 END +
    CASE WHEN toLower(w.summary) CONTAINS toLower(keyword) THEN 1 ELSE 0 END
  ) AS score
RETURN w.url AS url, w.title AS title, w.summary AS summary, score
ORDER BY score DESC
LIMIT $limit
`

// Neo4jStore implements graph persistence and retrieval on a Neo4j property
// graph. Concurrent upserts to the same node serialize at the store level.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore wraps an existing driver. database may be empty for the
// server default.
func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

// UpsertWebpages writes a batch of records with merge semantics. Safe to call
// concurrently for overlapping URL sets.
func (s *Neo4jStore) UpsertWebpages(ctx context.Context, pages []crawl.Webpage) error {
	webpages := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		webpages = append(webpages, webpageParams(p))
	}
	_, err := neo4j.ExecuteQuery(ctx, s.driver, cypherUpsert,
		map[string]any{"webpages": webpages},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return fmt.Errorf("upsert webpages: %w", err)
	}
	return nil
}

// VectorSearch implements Searcher via the webpage-embeddings vector index.
func (s *Neo4jStore) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]SearchHit, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypherVectorSearch,
		map[string]any{
			"index":     VectorIndexName,
			"limit":     limit,
			"embedding": toFloat64s(embedding),
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hitsFromRecords(result.Records), nil
}

// KeywordSearch implements Searcher via the keyword-overlap scoring query.
func (s *Neo4jStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]SearchHit, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypherKeywordSearch,
		map[string]any{
			"keywords": keywords,
			"limit":    limit,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hitsFromRecords(result.Records), nil
}

// EnsureVectorIndex creates the embeddings index if it does not exist.
// Dimensions must match the embedding model in use.
func (s *Neo4jStore) EnsureVectorIndex(ctx context.Context, dimensions int) error {
	// The index name needs backtick quoting because of the hyphen.
	query := fmt.Sprintf(`
CREATE VECTOR INDEX `+"`%s`"+` IF NOT EXISTS
FOR (w:Webpage) ON (w.embeddings)
OPTIONS {indexConfig: {
  `+"`vector.dimensions`"+`: $dimensions,
  `+"`vector.similarity_function`"+`: 'cosine'
}}`, VectorIndexName)
	_, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"dimensions": dimensions},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return fmt.Errorf("ensure vector index: %w", err)
	}
	return nil
}

func webpageParams(p crawl.Webpage) map[string]any {
	return map[string]any{
		"url":        p.URL,
		"status":     p.Status,
		"title":      p.Title,
		"is_404":     p.Is404,
		"keywords":   p.Keywords,
		"embeddings": toFloat64s(p.Embeddings),
		"summary":    p.Summary,
		"links":      p.Links,
		"redirects":  p.Redirects,
	}
}

func toFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func hitsFromRecords(records []*neo4j.Record) []SearchHit {
	hits := make([]SearchHit, 0, len(records))
	for _, rec := range records {
		hit := SearchHit{}
		if v, ok := rec.Get("url"); ok {
			hit.URL, _ = v.(string)
		}
		if v, ok := rec.Get("title"); ok {
			hit.Title, _ = v.(string)
		}
		if v, ok := rec.Get("summary"); ok {
			hit.Summary, _ = v.(string)
		}
		if v, ok := rec.Get("score"); ok {
			switch s := v.(type) {
			case float64:
				hit.Score = s
			case int64:
				hit.Score = float64(s)
			}
		}
		hit.Favicon = FaviconURL(hit.URL)
		hits = append(hits, hit)
	}
	return hits
}

// FaviconURL builds the favicon endpoint served alongside each hit.
func FaviconURL(pageURL string) string {
	return "https://t2.gstatic.com/faviconV2?client=SOCIAL&type=FAVICON&fallback_opts=TYPE,SIZE,URL&url=" + pageURL + "&size=64"
}
