package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ffmirror/ffserve/internal/domain"
	"github.com/ffmirror/ffserve/internal/store"
)

// authorColumns must match the scan order in scanAuthor.
const authorColumns = `a.id, a.site, a.site_id, a.name, a.in_mirror`

func scanAuthor(sc scanner) (*domain.Author, error) {
	var a domain.Author
	if err := sc.Scan(&a.ID, &a.Site, &a.SiteID, &a.Name, &a.InMirror); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAuthor retrieves an author by id.
func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authorColumns+` FROM authors a WHERE a.id = ?`, id)
	if err != nil {
		return nil, err
	}
	return one(rows, scanAuthor)
}

// SaveAuthor inserts or updates an author.
func (s *Store) SaveAuthor(ctx context.Context, a *domain.Author) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authors (id, site, site_id, name, in_mirror)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site = excluded.site,
			site_id = excluded.site_id,
			name = excluded.name,
			in_mirror = excluded.in_mirror`,
		a.ID, a.Site, a.SiteID, a.Name, boolInt(a.InMirror),
	)
	if err != nil {
		return fmt.Errorf("save author %s: %w", a.ID, err)
	}
	return nil
}

// ListAuthorStories returns in-mirror authors joined with their stories, author-major.
// Without a tag every in-mirror author appears, including those with no stories.
// With a tag only authors with a matching story appear, with only the matching stories.
func (s *Store) ListAuthorStories(ctx context.Context, filter store.AuthorStoryFilter) ([]store.AuthorStoryRow, error) {
	query := `
		SELECT ` + authorColumns + `,
			s.id, s.site, s.site_id, s.title, s.category, s.words, s.updated, s.download_time, s.download_fn
		FROM authors a
		LEFT JOIN stories s ON s.author_id = a.id
		WHERE a.in_mirror = 1
		ORDER BY lower(a.name), a.id, s.title, s.id`
	args := []any{}

	if filter.Tag != "" {
		query = `
		SELECT ` + authorColumns + `,
			s.id, s.site, s.site_id, s.title, s.category, s.words, s.updated, s.download_time, s.download_fn
		FROM authors a
		JOIN stories s ON s.author_id = a.id
		JOIN story_tags st ON st.story_id = s.id
		JOIN tags t ON t.id = st.tag_id
		WHERE a.in_mirror = 1 AND t.name = ?
		ORDER BY lower(a.name), a.id, s.title, s.id`
		args = append(args, filter.Tag)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list author stories: %w", err)
	}
	defer rows.Close()

	result := []store.AuthorStoryRow{}
	var stories []*domain.Story
	for rows.Next() {
		row, err := scanAuthorStoryRow(rows)
		if err != nil {
			return nil, err
		}
		if row.Story != nil {
			stories = append(stories, row.Story)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, stories); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAuthorStoryRow(sc scanner) (store.AuthorStoryRow, error) {
	var (
		a        domain.Author
		id       sql.NullString
		site     sql.NullString
		siteID   sql.NullString
		title    sql.NullString
		category sql.NullString
		words    sql.NullInt64
		updated  sql.NullInt64
		dlTime   sql.NullInt64
		dlFn     sql.NullString
	)
	err := sc.Scan(
		&a.ID, &a.Site, &a.SiteID, &a.Name, &a.InMirror,
		&id, &site, &siteID, &title, &category, &words, &updated, &dlTime, &dlFn,
	)
	if err != nil {
		return store.AuthorStoryRow{}, err
	}

	row := store.AuthorStoryRow{Author: &a}
	if id.Valid {
		row.Story = &domain.Story{
			ID:           id.String,
			Site:         site.String,
			SiteID:       siteID.String,
			AuthorID:     a.ID,
			AuthorName:   a.Name,
			Title:        title.String,
			Category:     category.String,
			Words:        int(words.Int64),
			Updated:      unixTime(updated.Int64),
			DownloadTime: nullableUnix(dlTime),
			DownloadFn:   nullableString(dlFn),
		}
	}
	return row, nil
}
