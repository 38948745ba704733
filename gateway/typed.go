package gateway

import (
	"context"

	"gorm.io/gorm"
)

// Create inserts rec and logs the change.
func Create[T any](ctx context.Context, g *Gateway, rec *T) error {
	table, err := tableName(g.db, rec)
	if err != nil {
		return g.fail("create", "", err)
	}
	db, cancel := g.session(ctx)
	defer cancel()
	if err := db.Transaction(func(tx *gorm.DB) error { return g.insert(tx, table, rec) }); err != nil {
		return g.fail("create", table, err)
	}
	return nil
}

// Find returns every T matching filter, ordered by id.
func Find[T any](ctx context.Context, g *Gateway, filter Filter) ([]T, error) {
	var zero T
	table, err := tableName(g.db, &zero)
	if err != nil {
		return nil, g.fail("find", "", err)
	}
	if err := checkColumns(&zero, filter); err != nil {
		return nil, g.fail("find", table, err)
	}

	db, cancel := g.session(ctx)
	defer cancel()
	out := []T{}
	q := db.Order("id")
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, g.fail("find", table, err)
	}
	return out, nil
}

// First loads a single T by primary key.
func First[T any](ctx context.Context, g *Gateway, id uint) (T, error) {
	var rec T
	table, err := tableName(g.db, &rec)
	if err != nil {
		return rec, g.fail("first", "", err)
	}
	db, cancel := g.session(ctx)
	defer cancel()
	if err := db.First(&rec, id).Error; err != nil {
		return rec, g.fail("first", table, err)
	}
	return rec, nil
}

// Save writes every field of rec, bumping its version.
func Save[T any](ctx context.Context, g *Gateway, rec *T) error {
	table, err := tableName(g.db, rec)
	if err != nil {
		return g.fail("save", "", err)
	}
	db, cancel := g.session(ctx)
	defer cancel()
	if err := db.Transaction(func(tx *gorm.DB) error { return g.save(tx, table, rec) }); err != nil {
		return g.fail("save", table, err)
	}
	return nil
}

// Remove deletes rec by primary key.
func Remove[T any](ctx context.Context, g *Gateway, rec *T) error {
	table, err := tableName(g.db, rec)
	if err != nil {
		return g.fail("remove", "", err)
	}
	db, cancel := g.session(ctx)
	defer cancel()
	if err := db.Transaction(func(tx *gorm.DB) error { return g.remove(tx, table, rec) }); err != nil {
		return g.fail("remove", table, err)
	}
	return nil
}
