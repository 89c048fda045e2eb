package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Titles that can never be renamed or deleted, regardless of caller intent.
var protectedTitles = map[string]bool{
	"General":    true,
	"All Assets": true,
	"Favorites":  true,
}

func IsProtectedTitle(title string) bool {
	return protectedTitles[title]
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := s.db.SelectContext(ctx, &cats,
		"SELECT id, title, sort_order FROM category ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	var subs []SubCategory
	err = s.db.SelectContext(ctx, &subs,
		"SELECT id, name, icon, sort_order, category_id FROM subcategory ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	byCat := make(map[int64][]SubCategory)
	for _, sub := range subs {
		byCat[sub.CategoryID] = append(byCat[sub.CategoryID], sub)
	}
	for i := range cats {
		cats[i].SubCategories = byCat[cats[i].ID]
		if cats[i].SubCategories == nil {
			cats[i].SubCategories = []SubCategory{}
		}
	}
	return cats, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var cat Category
	err := s.db.GetContext(ctx, &cat,
		"SELECT id, title, sort_order FROM category WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &cat.SubCategories,
		"SELECT id, name, icon, sort_order, category_id FROM subcategory WHERE category_id = ? ORDER BY sort_order, id", id)
	if err != nil {
		return nil, err
	}
	if cat.SubCategories == nil {
		cat.SubCategories = []SubCategory{}
	}
	return &cat, nil
}

// CreateCategory inserts a category, returning the existing one when the
// title is already taken.
func (s *Store) CreateCategory(ctx context.Context, title string, order int) (*Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyName
	}
	var existing Category
	err := s.db.GetContext(ctx, &existing,
		"SELECT id, title, sort_order FROM category WHERE title = ?", title)
	if err == nil {
		return s.GetCategory(ctx, existing.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO category (title, sort_order) VALUES (?, ?)", title, order)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetCategory(ctx, id)
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, title string, order int) (*Category, error) {
	cat, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsProtectedTitle(cat.Title) || IsProtectedTitle(title) {
		return nil, ErrProtected
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyName
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE category SET title = ?, sort_order = ? WHERE id = ?", title, order, id)
	if err != nil {
		return nil, err
	}
	return s.GetCategory(ctx, id)
}

// DeleteCategory removes a category and, via the schema cascade, its
// subcategories. Assets keep existing; their subcategory reference becomes
// null.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	cat, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if IsProtectedTitle(cat.Title) {
		return ErrProtected
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM category WHERE id = ?", id)
	return err
}

// CreateSubCategory adds a subcategory and assigns it to every asset whose
// keyword corpus contains the subcategory name. Returns the subcategory and
// the number of assets assigned.
func (s *Store) CreateSubCategory(ctx context.Context, categoryID int64, name, icon string, order int) (*SubCategory, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, ErrEmptyName
	}
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return nil, 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO subcategory (name, icon, sort_order, category_id) VALUES (?, ?, ?, ?)",
		name, icon, order, categoryID)
	if err != nil {
		return nil, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, 0, err
	}

	assigned, err := s.assignAssetsToKeyword(ctx, tx, id, name)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	sub, err := s.getSubCategory(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return sub, assigned, nil
}

// UpdateSubCategory renames a subcategory. A rename re-runs keyword
// assignment with the new name; icon/order-only changes do not.
func (s *Store) UpdateSubCategory(ctx context.Context, id int64, name, icon string, order int) (*SubCategory, error) {
	sub, err := s.getSubCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	parent, err := s.GetCategory(ctx, sub.CategoryID)
	if err != nil {
		return nil, err
	}
	if IsProtectedTitle(sub.Name) || IsProtectedTitle(parent.Title) || IsProtectedTitle(name) {
		return nil, ErrProtected
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE subcategory SET name = ?, icon = ?, sort_order = ? WHERE id = ?",
		name, icon, order, id)
	if err != nil {
		return nil, err
	}
	if name != sub.Name {
		if _, err := s.assignAssetsToKeyword(ctx, tx, id, name); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.getSubCategory(ctx, id)
}

func (s *Store) DeleteSubCategory(ctx context.Context, id int64) error {
	sub, err := s.getSubCategory(ctx, id)
	if err != nil {
		return err
	}
	parent, err := s.GetCategory(ctx, sub.CategoryID)
	if err != nil {
		return err
	}
	if IsProtectedTitle(sub.Name) || IsProtectedTitle(parent.Title) {
		return ErrProtected
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM subcategory WHERE id = ?", id)
	return err
}

// BulkReplaceCategories replaces the whole user-defined taxonomy: every
// non-protected category is dropped, then the given structure is created and
// keyword assignment runs for each new subcategory. Protected categories pass
// through untouched; incoming protected titles are skipped.
func (s *Store) BulkReplaceCategories(ctx context.Context, categories []Category) error {
	existing, err := s.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, cat := range existing {
		if IsProtectedTitle(cat.Title) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM category WHERE id = ?", cat.ID); err != nil {
			return err
		}
	}

	for _, cat := range categories {
		if IsProtectedTitle(cat.Title) {
			continue
		}
		created, err := s.CreateCategory(ctx, cat.Title, cat.SortOrder)
		if err != nil {
			if errors.Is(err, ErrEmptyName) {
				continue
			}
			return err
		}
		for _, sub := range cat.SubCategories {
			if _, _, err := s.CreateSubCategory(ctx, created.ID, sub.Name, sub.Icon, sub.SortOrder); err != nil {
				if errors.Is(err, ErrEmptyName) {
					continue
				}
				return err
			}
		}
	}
	return nil
}

func (s *Store) getSubCategory(ctx context.Context, id int64) (*SubCategory, error) {
	var sub SubCategory
	err := s.db.GetContext(ctx, &sub,
		"SELECT id, name, icon, sort_order, category_id FROM subcategory WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) allSubCategories(ctx context.Context) ([]SubCategory, error) {
	var subs []SubCategory
	err := s.db.SelectContext(ctx, &subs,
		"SELECT id, name, icon, sort_order, category_id FROM subcategory ORDER BY id")
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// assignAssetsToKeyword points every asset whose keyword corpus contains the
// keyword at the given subcategory, overwriting any prior assignment.
func (s *Store) assignAssetsToKeyword(ctx context.Context, tx *sqlx.Tx, subID int64, keyword string) (int, error) {
	var assets []Asset
	err := tx.SelectContext(ctx, &assets,
		"SELECT id, name, description, tags, trigger_words, used_resources FROM asset")
	if err != nil {
		return 0, err
	}
	assigned := 0
	for i := range assets {
		if !matchesKeyword(keyword, &assets[i]) {
			continue
		}
		if _, err := tx.ExecContext(ctx, "UPDATE asset SET subcategory_id = ? WHERE id = ?", subID, assets[i].ID); err != nil {
			return 0, err
		}
		assigned++
	}
	return assigned, nil
}
