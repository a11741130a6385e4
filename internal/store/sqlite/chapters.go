package sqlite

import (
	"context"

	"github.com/ffmirror/ffserve/internal/domain"
)

// ListChapters returns the recorded chapters of a story in reading order.
func (s *Store) ListChapters(ctx context.Context, storyID string) ([]*domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT story_id, num, title FROM chapters WHERE story_id = ? ORDER BY num`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chapters := []*domain.Chapter{}
	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(&ch.StoryID, &ch.Num, &ch.Title); err != nil {
			return nil, err
		}
		chapters = append(chapters, &ch)
	}
	return chapters, rows.Err()
}
