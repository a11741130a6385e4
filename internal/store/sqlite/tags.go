package sqlite

import (
	"context"
	"fmt"

	"github.com/ffmirror/ffserve/internal/domain"
)

// tagBatch bounds the IN list when loading tags for many stories.
const tagBatch = 500

func scanTag(sc scanner) (*domain.Tag, error) {
	var t domain.Tag
	if err := sc.Scan(&t.ID, &t.Name); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTagByName retrieves a tag by its exact name.
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	return one(rows, scanTag)
}

// attachTags fills Story.Tags, sorted by name, for every story in the slice.
func (s *Store) attachTags(ctx context.Context, stories []*domain.Story) error {
	if len(stories) == 0 {
		return nil
	}

	byID := make(map[string][]*domain.Story, len(stories))
	ids := make([]any, 0, len(stories))
	for _, st := range stories {
		if _, seen := byID[st.ID]; !seen {
			ids = append(ids, st.ID)
		}
		byID[st.ID] = append(byID[st.ID], st)
		st.Tags = []string{}
	}

	for start := 0; start < len(ids); start += tagBatch {
		batch := ids[start:min(start+tagBatch, len(ids))]
		rows, err := s.db.QueryContext(ctx, `
			SELECT st.story_id, t.name
			FROM story_tags st JOIN tags t ON t.id = st.tag_id
			WHERE st.story_id IN (`+placeholders(len(batch))+`)
			ORDER BY t.name`, batch...)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		for rows.Next() {
			var storyID, name string
			if err := rows.Scan(&storyID, &name); err != nil {
				rows.Close()
				return err
			}
			for _, st := range byID[storyID] {
				st.Tags = append(st.Tags, name)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
