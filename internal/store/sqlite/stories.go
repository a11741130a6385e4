package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/id"
	"github.com/ffmirror/ffserve/internal/store"
)

// storyColumns must match the scan order in scanStory. Queries join authors as a.
const storyColumns = `s.id, s.site, s.site_id, s.author_id, a.name, s.title, s.category,
	s.words, s.updated, s.download_time, s.download_fn`

// storyOrder maps a sort key to its ORDER BY clause. Ties always fall back to title then id.
var storyOrder = map[domain.SortOrder]string{
	domain.SortTitle:    `s.title ASC, s.id ASC`,
	domain.SortAuthor:   `lower(a.name) ASC, s.title ASC, s.id ASC`,
	domain.SortCategory: `s.category ASC, s.title ASC, s.id ASC`,
	domain.SortWords:    `s.words DESC, s.title ASC, s.id ASC`,
	domain.SortUpdated:  `s.updated DESC, s.title ASC, s.id ASC`,
}

func scanStory(sc scanner) (*domain.Story, error) {
	var (
		st      domain.Story
		updated int64
		dlTime  sql.NullInt64
		dlFn    sql.NullString
	)
	err := sc.Scan(
		&st.ID, &st.Site, &st.SiteID, &st.AuthorID, &st.AuthorName, &st.Title, &st.Category,
		&st.Words, &updated, &dlTime, &dlFn,
	)
	if err != nil {
		return nil, err
	}
	st.Updated = unixTime(updated)
	st.DownloadTime = nullableUnix(dlTime)
	st.DownloadFn = nullableString(dlFn)
	return &st, nil
}

func (s *Store) queryStories(ctx context.Context, query string, args ...any) ([]*domain.Story, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stories := []*domain.Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// GetStory retrieves a story with its tags.
func (s *Store) GetStory(ctx context.Context, storyID string) (*domain.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storyColumns+`
		FROM stories s JOIN authors a ON a.id = s.author_id
		WHERE s.id = ?`, storyID)
	if err != nil {
		return nil, err
	}
	st, err := one(rows, scanStory)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, []*domain.Story{st}); err != nil {
		return nil, err
	}
	return st, nil
}

// storyFilterClause builds the shared FROM/WHERE of the flat listing.
func storyFilterClause(filter store.StoryFilter) (string, []any) {
	clause := `
		FROM stories s JOIN authors a ON a.id = s.author_id
		WHERE a.in_mirror = 1`
	var args []any
	if filter.Tag != "" {
		clause += ` AND EXISTS (
			SELECT 1 FROM story_tags st JOIN tags t ON t.id = st.tag_id
			WHERE st.story_id = s.id AND t.name = ?)`
		args = append(args, filter.Tag)
	}
	return clause, args
}

// ListStories returns one page of the flat story listing.
// A non-positive Limit returns every story from Offset on.
func (s *Store) ListStories(ctx context.Context, filter store.StoryFilter) ([]*domain.Story, error) {
	sort := filter.Sort
	if sort == "" {
		sort = domain.DefaultSort
	}
	order, ok := storyOrder[sort]
	if !ok {
		return nil, store.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown sort %q", sort))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	clause, args := storyFilterClause(filter)
	args = append(args, limit, filter.Offset)

	stories, err := s.queryStories(ctx,
		`SELECT `+storyColumns+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// CountStories counts the stories matched by the filter, ignoring Limit and Offset.
func (s *Store) CountStories(ctx context.Context, filter store.StoryFilter) (int, error) {
	clause, args := storyFilterClause(filter)

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stories: %w", err)
	}
	return n, nil
}

// ListWrittenStories returns the stories written by an author, ordered by title.
func (s *Store) ListWrittenStories(ctx context.Context, authorID string) ([]*domain.Story, error) {
	return s.queryStories(ctx, `
		SELECT `+storyColumns+`
		FROM stories s JOIN authors a ON a.id = s.author_id
		WHERE s.author_id = ?
		ORDER BY s.title, s.id`, authorID)
}

// ListFavoriteStories returns an author's favorites in the order the author listed them.
func (s *Store) ListFavoriteStories(ctx context.Context, authorID string) ([]*domain.Story, error) {
	return s.queryStories(ctx, `
		SELECT `+storyColumns+`
		FROM favorites f
		JOIN stories s ON s.id = f.story_id
		JOIN authors a ON a.id = s.author_id
		WHERE f.author_id = ?
		ORDER BY f.position, s.id`, authorID)
}

// SaveStory upserts a story and replaces its tags with story.Tags.
func (s *Store) SaveStory(ctx context.Context, st *domain.Story) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stories (id, site, site_id, author_id, title, category, words, updated, download_time, download_fn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site = excluded.site,
			site_id = excluded.site_id,
			author_id = excluded.author_id,
			title = excluded.title,
			category = excluded.category,
			words = excluded.words,
			updated = excluded.updated,
			download_time = excluded.download_time,
			download_fn = excluded.download_fn`,
		st.ID, st.Site, st.SiteID, st.AuthorID, st.Title, st.Category, st.Words,
		st.Updated.Unix(), nullUnix(st.DownloadTime), nullString(st.DownloadFn),
	)
	if err != nil {
		return fmt.Errorf("save story %s: %w", st.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM story_tags WHERE story_id = ?`, st.ID); err != nil {
		return err
	}
	for _, name := range st.Tags {
		tagID, err := ensureTag(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO story_tags (story_id, tag_id) VALUES (?, ?)`, st.ID, tagID); err != nil {
			return fmt.Errorf("tag story %s: %w", st.ID, err)
		}
	}

	return tx.Commit()
}

func ensureTag(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	newID, err := id.Generate("tag")
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tags (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, newID, name); err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	var tagID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
		return "", err
	}
	return tagID, nil
}

// MarkStoryDownloaded records a completed download and replaces the chapter list.
func (s *Store) MarkStoryDownloaded(ctx context.Context, storyID, downloadFn string, at time.Time, chapters []domain.Chapter) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE stories SET download_time = ?, download_fn = ? WHERE id = ?`,
		at.Unix(), downloadFn, storyID)
	if err != nil {
		return fmt.Errorf("mark story %s downloaded: %w", storyID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE story_id = ?`, storyID); err != nil {
		return err
	}
	for _, ch := range chapters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chapters (story_id, num, title) VALUES (?, ?, ?)`,
			storyID, ch.Num, ch.Title); err != nil {
			return fmt.Errorf("insert chapter %d: %w", ch.Num, err)
		}
	}

	return tx.Commit()
}

// SetFavorites replaces an author's favorite list, keeping the given order.
func (s *Store) SetFavorites(ctx context.Context, authorID string, storyIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE author_id = ?`, authorID); err != nil {
		return err
	}
	for i, storyID := range storyIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO favorites (author_id, story_id, position) VALUES (?, ?, ?)`,
			authorID, storyID, i); err != nil {
			return fmt.Errorf("favorite %s for %s: %w", storyID, authorID, err)
		}
	}
	return tx.Commit()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
