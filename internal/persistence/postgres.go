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

// URLChunkSize bounds how many URLs one existence query carries.
const URLChunkSize = 100

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	articles ArticleRepository
	entities EntityRepository
	digests  DigestRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:       db,
		articles: &postgresArticleRepo{db: db},
		entities: &postgresEntityRepo{db: db},
		digests:  &postgresDigestRepo{db: db},
	}, nil
}

func (p *PostgresDB) Articles() ArticleRepository { return p.articles }
func (p *PostgresDB) Entities() EntityRepository  { return p.entities }
func (p *PostgresDB) Digests() DigestRepository   { return p.digests }

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// postgresArticleRepo implements ArticleRepository for PostgreSQL
type postgresArticleRepo struct {
	db *sql.DB
}

const articleColumns = `
	id, title, url, source_name, source_url, published_at, fetched_at,
	category, raw_content, summary, key_takeaway, importance_score,
	tags, mentioned_entities, embedding, digest_date, entities_extracted
`

func (r *postgresArticleRepo) UpsertBatch(ctx context.Context, articles []core.Article) ([]core.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`

	var inserted []core.Article
	for _, article := range articles {
		if article.ID == "" {
			article.ID = uuid.New().String()
		}

		embeddingJSON, err := json.Marshal(article.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedding: %w", err)
		}

		var id string
		err = tx.QueryRowContext(ctx, query,
			article.ID, article.Title, article.URL, article.SourceName,
			article.SourceURL, nullableTime(article.Published), article.FetchedAt,
			string(article.Category), article.RawContent, article.Summary,
			article.KeyTakeaway, article.ImportanceScore,
			pq.Array(article.Tags), pq.Array(article.MentionedEntities),
			embeddingJSON, article.DigestDate, article.EntitiesExtracted,
		).Scan(&id)
		if err == sql.ErrNoRows {
			// URL conflict, another run already stored it
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert article %s: %w", article.URL, err)
		}

		article.ID = id
		inserted = append(inserted, article)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit article batch: %w", err)
	}
	return inserted, nil
}

func (r *postgresArticleRepo) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	existing := make(map[string]bool)

	for start := 0; start < len(urls); start += URLChunkSize {
		end := start + URLChunkSize
		if end > len(urls) {
			end = len(urls)
		}

		rows, err := r.db.QueryContext(ctx,
			`SELECT url FROM articles WHERE url = ANY($1)`, pq.Array(urls[start:end]))
		if err != nil {
			return nil, fmt.Errorf("failed to query existing urls: %w", err)
		}

		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				rows.Close()
				return nil, err
			}
			existing[url] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return existing, nil
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

func (r *postgresArticleRepo) GetByIDs(ctx context.Context, ids []string) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *postgresArticleRepo) GetSince(ctx context.Context, since time.Time, limit int) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE fetched_at >= $1
		ORDER BY importance_score DESC, fetched_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *postgresArticleRepo) MarkEntitiesExtracted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET entities_extracted = TRUE WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark entities extracted: %w", err)
	}
	return nil
}

func (r *postgresArticleRepo) GetPendingEntityExtraction(ctx context.Context, minImportance, limit int) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE entities_extracted = FALSE AND importance_score >= $1
		ORDER BY fetched_at ASC
		LIMIT $2
	`, minImportance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *postgresArticleRepo) CountPendingEntityExtraction(ctx context.Context, minImportance int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles
		WHERE entities_extracted = FALSE AND importance_score >= $1
	`, minImportance).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending articles: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var article core.Article
	var category string
	var published sql.NullTime
	var embeddingJSON []byte

	err := row.Scan(
		&article.ID, &article.Title, &article.URL, &article.SourceName,
		&article.SourceURL, &published, &article.FetchedAt,
		&category, &article.RawContent, &article.Summary,
		&article.KeyTakeaway, &article.ImportanceScore,
		pq.Array(&article.Tags), pq.Array(&article.MentionedEntities),
		&embeddingJSON, &article.DigestDate, &article.EntitiesExtracted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("article not found")
		}
		return nil, err
	}

	article.Category = core.ArticleCategory(category)
	if published.Valid {
		article.Published = published.Time
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &article.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	return &article, nil
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
