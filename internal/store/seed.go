package store

import "context"

var starterTaxonomy = []Category{
	{Title: "Models", SortOrder: 1, SubCategories: []SubCategory{
		{Name: "Checkpoint", Icon: "Server", SortOrder: 1},
		{Name: "LoRA", Icon: "Link", SortOrder: 2},
		{Name: "Textual Inversion", Icon: "Quote", SortOrder: 3},
		{Name: "VAE", Icon: "Package", SortOrder: 4},
	}},
	{Title: "Styles", SortOrder: 2, SubCategories: []SubCategory{
		{Name: "Anime", Icon: "Image", SortOrder: 1},
		{Name: "Realistic", Icon: "Camera", SortOrder: 2},
		{Name: "Cartoon", Icon: "Smile", SortOrder: 3},
		{Name: "Painting", Icon: "Brush", SortOrder: 4},
		{Name: "3D", Icon: "Cube", SortOrder: 5},
	}},
	{Title: "Concepts", SortOrder: 3, SubCategories: []SubCategory{
		{Name: "Character", Icon: "User", SortOrder: 1},
		{Name: "Object", Icon: "Circle", SortOrder: 2},
		{Name: "Scene", Icon: "Landmark", SortOrder: 3},
		{Name: "Effect", Icon: "Sparkles", SortOrder: 4},
	}},
	{Title: "Tools", SortOrder: 4, SubCategories: []SubCategory{
		{Name: "Pose", Icon: "Move", SortOrder: 1},
		{Name: "Workflow", Icon: "Repeat", SortOrder: 2},
		{Name: "Inpainting", Icon: "Eraser", SortOrder: 3},
		{Name: "ControlNet", Icon: "SlidersHorizontal", SortOrder: 4},
	}},
	{Title: "Media", SortOrder: 5, SubCategories: []SubCategory{
		{Name: "Image", Icon: "Image", SortOrder: 1},
		{Name: "Video", Icon: "Video", SortOrder: 2},
		{Name: "GIF", Icon: "PlayCircle", SortOrder: 3},
	}},
}

// Seed creates the protected "General" category with its fixed subcategories
// on first run, and the starter taxonomy when no user-defined categories
// exist yet.
func (s *Store) Seed(ctx context.Context) error {
	existing, err := s.ListCategories(ctx)
	if err != nil {
		return err
	}

	hasGeneral := false
	userDefined := false
	for _, cat := range existing {
		if cat.Title == "General" {
			hasGeneral = true
		} else {
			userDefined = true
		}
	}

	if !hasGeneral {
		general, err := s.CreateCategory(ctx, "General", 0)
		if err != nil {
			return err
		}
		if err := s.insertSubCategory(ctx, general.ID, "All Assets", "Grid", 0); err != nil {
			return err
		}
		if err := s.insertSubCategory(ctx, general.ID, "Favorites", "Star", 1); err != nil {
			return err
		}
	}

	if userDefined {
		return nil
	}
	for _, cat := range starterTaxonomy {
		created, err := s.CreateCategory(ctx, cat.Title, cat.SortOrder)
		if err != nil {
			return err
		}
		for _, sub := range cat.SubCategories {
			if err := s.insertSubCategory(ctx, created.ID, sub.Name, sub.Icon, sub.SortOrder); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertSubCategory skips keyword assignment; seeding runs against an empty
// or already-assigned library.
func (s *Store) insertSubCategory(ctx context.Context, categoryID int64, name, icon string, order int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO subcategory (name, icon, sort_order, category_id) VALUES (?, ?, ?, ?)",
		name, icon, order, categoryID)
	return err
}
