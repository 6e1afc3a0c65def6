package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pulse/internal/core"
)

// postgresEntityRepo implements EntityRepository for PostgreSQL
type postgresEntityRepo struct {
	db *sql.DB
}

const entityColumns = `
	id, type, name, slug, description, metadata, first_seen, last_mentioned,
	mention_count, source_article_ids, embedding, trending_score, enriched_at
`

func (r *postgresEntityRepo) FindSimilar(ctx context.Context, name string, threshold float64) ([]core.EntityMatch, error) {
	// The % operator prefilters through the GIN trgm index at pg_trgm's
	// default 0.3 limit; the similarity() check then applies the caller's
	// threshold, which must be >= 0.3 for the prefilter to be lossless.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entityColumns+`, similarity(name, $1) AS sim
		FROM knowledge_entities
		WHERE name % $1 AND similarity(name, $1) >= $2
		ORDER BY sim DESC
		LIMIT 10
	`, name, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar entities: %w", err)
	}
	defer rows.Close()

	var matches []core.EntityMatch
	for rows.Next() {
		entity, sim, err := scanEntityWithSimilarity(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, core.EntityMatch{Entity: *entity, Similarity: sim})
	}
	return matches, rows.Err()
}

func (r *postgresEntityRepo) Get(ctx context.Context, id string) (*core.KnowledgeEntity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM knowledge_entities WHERE id = $1`, id)
	return scanEntity(row)
}

func (r *postgresEntityRepo) GetBySlug(ctx context.Context, slug string) (*core.KnowledgeEntity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM knowledge_entities WHERE slug = $1`, slug)
	return scanEntity(row)
}

func (r *postgresEntityRepo) Create(ctx context.Context, entity core.KnowledgeEntity) (core.KnowledgeEntity, error) {
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}

	metadataJSON, embeddingJSON, err := marshalEntityJSON(entity)
	if err != nil {
		return core.KnowledgeEntity{}, err
	}

	var id string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO knowledge_entities (`+entityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`,
		entity.ID, string(entity.Type), entity.Name, entity.Slug,
		entity.Description, metadataJSON, entity.FirstSeen, entity.LastMentioned,
		entity.MentionCount, pq.Array(entity.SourceArticleIDs), embeddingJSON,
		entity.TrendingScore, entity.EnrichedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// Slug collision, return the entity that won
		existing, getErr := r.GetBySlug(ctx, entity.Slug)
		if getErr != nil {
			return core.KnowledgeEntity{}, fmt.Errorf("failed to load conflicting entity %s: %w", entity.Slug, getErr)
		}
		return *existing, nil
	}
	if err != nil {
		return core.KnowledgeEntity{}, fmt.Errorf("failed to insert entity %s: %w", entity.Name, err)
	}

	entity.ID = id
	return entity, nil
}

func (r *postgresEntityRepo) Update(ctx context.Context, entity core.KnowledgeEntity) error {
	metadataJSON, embeddingJSON, err := marshalEntityJSON(entity)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE knowledge_entities SET
			type = $2, name = $3, slug = $4, description = $5, metadata = $6,
			last_mentioned = $7, mention_count = $8, source_article_ids = $9,
			embedding = $10, trending_score = $11, enriched_at = $12
		WHERE id = $1
	`,
		entity.ID, string(entity.Type), entity.Name, entity.Slug,
		entity.Description, metadataJSON, entity.LastMentioned,
		entity.MentionCount, pq.Array(entity.SourceArticleIDs), embeddingJSON,
		entity.TrendingScore, entity.EnrichedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity %s: %w", entity.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("entity %s not found", entity.ID)
	}
	return nil
}

func (r *postgresEntityRepo) TopByMentions(ctx context.Context, limit int) ([]core.KnowledgeEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM knowledge_entities
		ORDER BY mention_count DESC, last_mentioned DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []core.KnowledgeEntity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

func marshalEntityJSON(entity core.KnowledgeEntity) ([]byte, []byte, error) {
	metadataJSON, err := json.Marshal(entity.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	embeddingJSON, err := json.Marshal(entity.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return metadataJSON, embeddingJSON, nil
}

func scanEntity(row rowScanner) (*core.KnowledgeEntity, error) {
	entity, err := scanEntityFields(row, false)
	if err != nil {
		return nil, err
	}
	return &entity.KnowledgeEntity, nil
}

func scanEntityWithSimilarity(row rowScanner) (*core.KnowledgeEntity, float64, error) {
	entity, err := scanEntityFields(row, true)
	if err != nil {
		return nil, 0, err
	}
	return &entity.KnowledgeEntity, entity.similarity, nil
}

// scannedEntity carries the similarity column alongside the entity when the
// query selected it.
type scannedEntity struct {
	core.KnowledgeEntity
	similarity float64
}

func scanEntityFields(row rowScanner, withSimilarity bool) (*scannedEntity, error) {
	var entity scannedEntity
	var entityType string
	var metadataJSON, embeddingJSON []byte
	var enrichedAt sql.NullTime

	dest := []interface{}{
		&entity.ID, &entityType, &entity.Name, &entity.Slug,
		&entity.Description, &metadataJSON, &entity.FirstSeen, &entity.LastMentioned,
		&entity.MentionCount, pq.Array(&entity.SourceArticleIDs), &embeddingJSON,
		&entity.TrendingScore, &enrichedAt,
	}
	if withSimilarity {
		dest = append(dest, &entity.similarity)
	}

	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("entity not found")
		}
		return nil, err
	}

	entity.Type = core.EntityType(entityType)
	if enrichedAt.Valid {
		t := enrichedAt.Time
		entity.EnrichedAt = &t
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &entity.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	return &entity, nil
}

// postgresDigestRepo implements DigestRepository for PostgreSQL
type postgresDigestRepo struct {
	db *sql.DB
}

func (r *postgresDigestRepo) UpsertByDate(ctx context.Context, digest core.Digest) (core.Digest, error) {
	if digest.ID == "" {
		digest.ID = uuid.New().String()
	}
	if digest.GeneratedAt.IsZero() {
		digest.GeneratedAt = time.Now().UTC()
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO digests (id, date, generated_at, article_count, top_story_id, editorial_intro, weekly_summary, backlog_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			article_count = EXCLUDED.article_count,
			top_story_id = EXCLUDED.top_story_id,
			editorial_intro = EXCLUDED.editorial_intro,
			backlog_count = EXCLUDED.backlog_count
		RETURNING id
	`,
		digest.ID, digest.Date, digest.GeneratedAt, digest.ArticleCount,
		nullableString(digest.TopStoryID), digest.EditorialIntro,
		digest.WeeklySummary, digest.BacklogCount,
	).Scan(&id)
	if err != nil {
		return core.Digest{}, fmt.Errorf("failed to upsert digest for %s: %w", digest.Date, err)
	}

	digest.ID = id
	return digest, nil
}

func (r *postgresDigestRepo) GetLatest(ctx context.Context) (*core.Digest, error) {
	var digest core.Digest
	var topStoryID sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, date, generated_at, article_count, top_story_id, editorial_intro, weekly_summary, backlog_count
		FROM digests
		ORDER BY date DESC
		LIMIT 1
	`).Scan(
		&digest.ID, &digest.Date, &digest.GeneratedAt, &digest.ArticleCount,
		&topStoryID, &digest.EditorialIntro, &digest.WeeklySummary, &digest.BacklogCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no digests stored")
		}
		return nil, err
	}

	if topStoryID.Valid {
		digest.TopStoryID = topStoryID.String
	}
	return &digest, nil
}

func (r *postgresDigestRepo) SetWeeklySummary(ctx context.Context, id string, summary string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE digests SET weekly_summary = $2 WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("failed to set weekly summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("digest %s not found", id)
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
