// Package store persists cached intent classifications with embeddings.
// Commands that classified successfully at high confidence are promoted here
// so future similar commands skip the AI tier entirely. The store is backed
// by a user-local SQLite database with a sqlite-vec virtual table for ANN
// search; when the vec extension is unavailable it falls back to brute-force
// cosine similarity over the embedding blobs.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sheetmind/internal/embedding"
	"sheetmind/internal/logging"
)

// CachedIntent is one promoted classification.
type CachedIntent struct {
	ID          int64     // Database ID
	Command     string    // Canonical command text (the cache key)
	OutputMode  string    // Stored classification: outputMode
	SkillID     string    // Stored classification: skill id (may be empty)
	SheetAction string    // Stored classification: sheet action (may be empty)
	Confidence  float64   // Confidence recorded at promotion time
	HitCount    int       // How many times this entry served a cache hit
	SuccessRate float64   // Rolling success rate across recorded outcomes
	Seed        bool      // True for entries shipped with the product
	CreatedAt   time.Time // When the entry was promoted
}

// Match is a similarity lookup result.
type Match struct {
	Intent     CachedIntent
	Similarity float64
}

// IntentCache manages cached intents with embeddings.
type IntentCache struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewIntentCache creates or opens the intent cache database.
func NewIntentCache(dbPath string) (*IntentCache, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewIntentCache")
	defer timer.Stop()

	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}

	logging.Store("Initializing intent cache at: %s", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	cache := &IntentCache{
		db:     db,
		dbPath: dbPath,
	}

	if err := cache.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Intent cache initialized")
	return cache, nil
}

// initializeSchema creates the required tables.
func (c *IntentCache) initializeSchema() error {
	intentsTable := `
	CREATE TABLE IF NOT EXISTS cached_intents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL UNIQUE,
		output_mode TEXT NOT NULL,
		skill_id TEXT,
		sheet_action TEXT,
		confidence REAL DEFAULT 0.0,
		hit_count INTEGER DEFAULT 0,
		success_count INTEGER DEFAULT 0,
		outcome_count INTEGER DEFAULT 0,
		seed INTEGER DEFAULT 0,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_intents_mode ON cached_intents(output_mode);
	CREATE INDEX IF NOT EXISTS idx_intents_created ON cached_intents(created_at);
	`

	if _, err := c.db.Exec(intentsTable); err != nil {
		return fmt.Errorf("failed to create cached_intents table: %w", err)
	}

	// sqlite-vec virtual table for ANN search. Dimension is fixed by the
	// embedding model; mixed-dimension rows are skipped at query time.
	vecTable := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_intents USING vec0(
		embedding float[%d],
		command TEXT
	);
	`, embedding.DefaultDimensions)
	if _, err := c.db.Exec(vecTable); err != nil {
		// Non-fatal: vec extension might not be compiled in
		logging.Get(logging.CategoryStore).Warn("Failed to create vec_intents table (sqlite-vec may not be available): %v", err)
	}

	return nil
}

// Upsert promotes a classification into the cache. Promoting the same
// canonical command twice updates the stored classification; concurrent
// promotions of the same command are safe (last writer wins).
func (c *IntentCache) Upsert(ctx context.Context, command string, embed []float32, outputMode, skillID, sheetAction string, confidence float64) error {
	timer := logging.StartTimer(logging.CategoryStore, "IntentCache.Upsert")
	defer timer.Stop()

	if command == "" {
		return fmt.Errorf("command text required")
	}
	if outputMode == "" {
		return fmt.Errorf("output mode required")
	}
	if len(embed) == 0 {
		return fmt.Errorf("embedding required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	embedBlob := encodeFloat32SliceToBlob(embed)

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cached_intents (command, output_mode, skill_id, sheet_action, confidence, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(command) DO UPDATE SET
			output_mode = excluded.output_mode,
			skill_id = excluded.skill_id,
			sheet_action = excluded.sheet_action,
			confidence = excluded.confidence,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`, command, outputMode, skillID, sheetAction, confidence, embedBlob)
	if err != nil {
		return fmt.Errorf("failed to upsert intent: %w", err)
	}

	// Mirror into the vec table for ANN search.
	if _, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vec_intents (embedding, command)
		VALUES (?, ?)
	`, embedBlob, command); err != nil {
		// Non-fatal: brute-force search still works
		logging.Get(logging.CategoryStore).Warn("Failed to insert into vec_intents (ANN may be unavailable): %v", err)
	}

	logging.Store("Intent promoted to cache: mode=%s skill=%s", outputMode, skillID)
	return nil
}

// FindSimilar returns the best match at or above the similarity threshold,
// or nil when nothing qualifies. A hit increments the entry's hit count.
func (c *IntentCache) FindSimilar(ctx context.Context, queryEmbed []float32, threshold float64) (*Match, error) {
	timer := logging.StartTimer(logging.CategoryStore, "IntentCache.FindSimilar")
	defer timer.Stop()

	if len(queryEmbed) == 0 {
		return nil, fmt.Errorf("query embedding required")
	}

	c.mu.RLock()
	best, err := c.search(ctx, queryEmbed)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if best == nil || best.Similarity < threshold {
		logging.StoreDebug("Cache miss (best similarity %.4f, threshold %.2f)",
			bestSimilarity(best), threshold)
		return nil, nil
	}

	// Record the hit. Failure here must not fail the lookup.
	c.mu.Lock()
	if _, err := c.db.ExecContext(ctx, `
		UPDATE cached_intents SET hit_count = hit_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, best.Intent.ID); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to record cache hit: %v", err)
	} else {
		best.Intent.HitCount++
	}
	c.mu.Unlock()

	logging.Store("Cache hit: %q ~ %q (similarity %.4f)",
		truncate(best.Intent.Command, 60), best.Intent.OutputMode, best.Similarity)
	return best, nil
}

// search tries ANN first and falls back to brute force.
func (c *IntentCache) search(ctx context.Context, queryEmbed []float32) (*Match, error) {
	queryBlob := encodeFloat32SliceToBlob(queryEmbed)

	match, err := c.searchVec(ctx, queryBlob)
	if err != nil {
		logging.StoreDebug("Falling back to brute-force search: %v", err)
		return c.searchBruteForce(ctx, queryEmbed)
	}
	return match, nil
}

// searchVec performs ANN search using sqlite-vec.
func (c *IntentCache) searchVec(ctx context.Context, queryBlob []byte) (*Match, error) {
	query := `
		SELECT
			ci.id, ci.command, ci.output_mode, ci.skill_id, ci.sheet_action,
			ci.confidence, ci.hit_count, ci.success_count, ci.outcome_count, ci.seed,
			vec_distance_cosine(vi.embedding, ?) AS distance
		FROM vec_intents vi
		JOIN cached_intents ci ON vi.command = ci.command
		ORDER BY distance ASC
		LIMIT 1
	`

	row := c.db.QueryRowContext(ctx, query, queryBlob)

	var m Match
	var distance float64
	var skillID, sheetAction sql.NullString
	var successCount, outcomeCount int
	if err := row.Scan(
		&m.Intent.ID, &m.Intent.Command, &m.Intent.OutputMode, &skillID, &sheetAction,
		&m.Intent.Confidence, &m.Intent.HitCount, &successCount, &outcomeCount, &m.Intent.Seed,
		&distance,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("vec search failed: %w", err)
	}

	m.Intent.SkillID = skillID.String
	m.Intent.SheetAction = sheetAction.String
	m.Intent.SuccessRate = successRate(successCount, outcomeCount)
	m.Similarity = 1.0 - distance
	return &m, nil
}

// searchBruteForce performs cosine similarity over all stored embeddings.
func (c *IntentCache) searchBruteForce(ctx context.Context, queryEmbed []float32) (*Match, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, command, output_mode, skill_id, sheet_action,
		       confidence, hit_count, success_count, outcome_count, seed, embedding
		FROM cached_intents
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached intents: %w", err)
	}
	defer rows.Close()

	var best *Match
	for rows.Next() {
		var intent CachedIntent
		var skillID, sheetAction sql.NullString
		var successCount, outcomeCount int
		var blob []byte

		if err := rows.Scan(
			&intent.ID, &intent.Command, &intent.OutputMode, &skillID, &sheetAction,
			&intent.Confidence, &intent.HitCount, &successCount, &outcomeCount, &intent.Seed, &blob,
		); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to scan cached intent row: %v", err)
			continue
		}

		vec := decodeFloat32SliceFromBlob(blob)
		if vec == nil {
			continue
		}

		sim, err := embedding.CosineSimilarity(queryEmbed, vec)
		if err != nil {
			continue // dimension mismatch from an older embedding model
		}

		intent.SkillID = skillID.String
		intent.SheetAction = sheetAction.String
		intent.SuccessRate = successRate(successCount, outcomeCount)

		if best == nil || sim > best.Similarity {
			best = &Match{Intent: intent, Similarity: sim}
		}
	}

	return best, rows.Err()
}

// RecordOutcome updates the rolling success rate for a cached command.
// Missing commands are ignored: outcomes may arrive for intents that were
// never promoted.
func (c *IntentCache) RecordOutcome(ctx context.Context, command string, success bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	successInc := 0
	if success {
		successInc = 1
	}

	_, err := c.db.ExecContext(ctx, `
		UPDATE cached_intents
		SET success_count = success_count + ?, outcome_count = outcome_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE command = ?
	`, successInc, command)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// SeedIntents loads shipped classification seeds, skipping commands already
// present. Used at first boot to prime the cache tier.
func (c *IntentCache) SeedIntents(ctx context.Context, seeds []CachedIntent, embeds [][]float32) error {
	if len(seeds) != len(embeds) {
		return fmt.Errorf("seed/embedding count mismatch: %d != %d", len(seeds), len(embeds))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, seed := range seeds {
		blob := encodeFloat32SliceToBlob(embeds[i])
		if _, err := c.db.ExecContext(ctx, `
			INSERT INTO cached_intents (command, output_mode, skill_id, sheet_action, confidence, seed, embedding)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(command) DO NOTHING
		`, seed.Command, seed.OutputMode, seed.SkillID, seed.SheetAction, seed.Confidence, blob); err != nil {
			return fmt.Errorf("failed to seed intent %q: %w", seed.Command, err)
		}
		if _, err := c.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO vec_intents (embedding, command) VALUES (?, ?)
		`, blob, seed.Command); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to seed vec_intents: %v", err)
		}
	}

	logging.Store("Seeded %d intents", len(seeds))
	return nil
}

// Stats returns cache statistics for diagnostics.
func (c *IntentCache) Stats(ctx context.Context) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]any{}

	var total, seeds, hits int
	row := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(seed), 0), COALESCE(SUM(hit_count), 0) FROM cached_intents
	`)
	if err := row.Scan(&total, &seeds, &hits); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	stats["total_intents"] = total
	stats["seed_intents"] = seeds
	stats["total_hits"] = hits
	return stats, nil
}

// Close closes the database.
func (c *IntentCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return err
		}
		c.db = nil
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func successRate(successCount, outcomeCount int) float64 {
	if outcomeCount == 0 {
		return 0
	}
	return float64(successCount) / float64(outcomeCount)
}

func bestSimilarity(m *Match) float64 {
	if m == nil {
		return 0
	}
	return m.Similarity
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// encodeFloat32SliceToBlob encodes a float32 slice as a little-endian blob.
func encodeFloat32SliceToBlob(vec []float32) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeFloat32SliceFromBlob decodes a binary blob back to a float32 slice.
func decodeFloat32SliceFromBlob(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}

	vec := make([]float32, len(blob)/4)
	reader := bytes.NewReader(blob)
	if err := binary.Read(reader, binary.LittleEndian, &vec); err != nil {
		return nil
	}
	return vec
}
