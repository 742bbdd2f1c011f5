package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyforge/bookqa/internal/model"
)

const (
	transformLockTTL  = 2 * time.Minute
	transformPollWait = 10 * time.Second
	transformPollStep = 100 * time.Millisecond
)

// TransformStore caches generated chapter variants. Rows are immutable and
// keyed by (chapter, kind, variant). Concurrent generation of the same
// variant is collapsed twice over: singleflight dedupes callers within the
// process, and a Redis lock dedupes across instances.
type TransformStore struct {
	db    *gorm.DB
	rdb   *goredis.Client
	group singleflight.Group
}

// NewTransformStore creates a transform cache. rdb may be nil, in which
// case only in-process deduplication applies.
func NewTransformStore(db *gorm.DB, rdb *goredis.Client) *TransformStore {
	return &TransformStore{db: db, rdb: rdb}
}

// Get returns the cached variant if present.
func (s *TransformStore) Get(ctx context.Context, chapter int, kind, variant string) (*model.TransformContent, error) {
	var row model.TransformContent
	err := s.db.WithContext(ctx).
		First(&row, "chapter_number = ? AND kind = ? AND variant = ?", chapter, kind, variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transform: %w", err)
	}
	return &row, nil
}

// GetOrCreate returns the cached variant, generating and storing it when
// absent. The second return reports whether the content came from cache.
func (s *TransformStore) GetOrCreate(ctx context.Context, chapter int, kind, variant string, generate func(context.Context) (string, error)) (string, bool, error) {
	if row, err := s.Get(ctx, chapter, kind, variant); err != nil {
		return "", false, err
	} else if row != nil {
		return row.Content, true, nil
	}

	lockKey := fmt.Sprintf("bookqa:transform:lock:%d:%s:%s", chapter, kind, variant)
	v, err, shared := s.group.Do(lockKey, func() (any, error) {
		return s.generateAndStore(ctx, lockKey, chapter, kind, variant, generate)
	})
	if err != nil {
		return "", false, err
	}
	g := v.(transformOutcome)
	return g.content, g.cached || shared, nil
}

type transformOutcome struct {
	content string
	cached  bool
}

func (s *TransformStore) generateAndStore(ctx context.Context, lockKey string, chapter int, kind, variant string, generate func(context.Context) (string, error)) (transformOutcome, error) {
	// A racer may have stored the row while this call waited its turn.
	if row, err := s.Get(ctx, chapter, kind, variant); err != nil {
		return transformOutcome{}, err
	} else if row != nil {
		return transformOutcome{content: row.Content, cached: true}, nil
	}

	if locked := s.acquireLock(ctx, lockKey); !locked {
		if row := s.waitForRow(ctx, chapter, kind, variant); row != nil {
			return transformOutcome{content: row.Content, cached: true}, nil
		}
		// The winner stalled or failed. Generate anyway; the unique key
		// still guarantees a single stored row.
	} else {
		defer s.releaseLock(ctx, lockKey)
	}

	content, err := generate(ctx)
	if err != nil {
		return transformOutcome{}, err
	}

	row := &model.TransformContent{
		ChapterNumber: chapter,
		Kind:          kind,
		Variant:       variant,
		Content:       content,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return transformOutcome{}, fmt.Errorf("failed to store transform: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another instance won the insert; serve their row.
		stored, err := s.Get(ctx, chapter, kind, variant)
		if err != nil {
			return transformOutcome{}, err
		}
		if stored != nil {
			return transformOutcome{content: stored.Content, cached: true}, nil
		}
	}
	return transformOutcome{content: content}, nil
}

func (s *TransformStore) acquireLock(ctx context.Context, key string) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, key, "1", transformLockTTL).Result()
	if err != nil {
		logger.Warnw("transform lock unavailable, proceeding without it", "key", key, "error", err)
		return true
	}
	return ok
}

func (s *TransformStore) releaseLock(ctx context.Context, key string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logger.Warnw("failed to release transform lock", "key", key, "error", err)
	}
}

// waitForRow polls for the row another caller is generating.
func (s *TransformStore) waitForRow(ctx context.Context, chapter int, kind, variant string) *model.TransformContent {
	deadline := time.Now().Add(transformPollWait)
	ticker := time.NewTicker(transformPollStep)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		row, err := s.Get(ctx, chapter, kind, variant)
		if err == nil && row != nil {
			return row
		}
	}
	return nil
}
