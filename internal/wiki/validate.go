package wiki

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vttlabs/lorekeeper/internal/common"
)

// ValidateEntry rejects entries missing required fields. Runs before any
// write is attempted; on error no mutation may occur.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: entry title is required", common.ErrValidation)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: entry category is required", common.ErrValidation)
	}
	return nil
}

// ValidateComment enforces the comment bounds.
func ValidateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment text is required", common.ErrValidation)
	}
	if utf8.RuneCountInString(text) > common.MaxCommentLen {
		return fmt.Errorf("%w: comment exceeds %d characters", common.ErrValidation, common.MaxCommentLen)
	}
	return nil
}

// ValidateCategories enforces the category-set invariants: at least one
// category, unique ids, non-empty labels.
func ValidateCategories(cats []Category) error {
	if len(cats) == 0 {
		return fmt.Errorf("%w: at least one category must remain", common.ErrValidation)
	}
	seen := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: category id is required", common.ErrValidation)
		}
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("%w: category label is required", common.ErrValidation)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate category id %q", common.ErrValidation, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
