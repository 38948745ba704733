// Package gateway is the single boundary between the service and its
// relational store. Every read and write goes through it, every write is
// appended to the db_changes log in the same transaction, and multi-table
// flows are exposed as procedures that run inside one transaction.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallTimeout bounds every gateway call. It is not configurable per call.
const CallTimeout = 10 * time.Second

var (
	ErrNotFound          = errors.New("record not found")
	ErrConstraint        = errors.New("constraint violation")
	ErrUnknownTable      = errors.New("unknown table")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrNoOpenOrder       = errors.New("table has no open order")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleVersion is returned when a row changed since it was read.
	ErrStaleVersion = fmt.Errorf("%w: stale version", ErrConstraint)
)

// Error carries the operation and table of a failed gateway call.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Row is an untyped record keyed by column name.
type Row map[string]interface{}

// Filter is a set of column equality conditions, all ANDed.
type Filter map[string]interface{}

// Gateway wraps the database handle.
type Gateway struct {
	db  *gorm.DB
	log *logrus.Entry
	now func() time.Time
}

func New(db *gorm.DB, log *logrus.Logger) *Gateway {
	return &Gateway{
		db:  db,
		log: log.WithField("component", "gateway"),
		now: time.Now,
	}
}

// DB exposes the handle for components that poll the change log.
func (g *Gateway) DB() *gorm.DB { return g.db }

func (g *Gateway) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	return g.db.WithContext(ctx), cancel
}

// fail translates driver errors, logs, and wraps them.
func (g *Gateway) fail(op, table string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		err = fmt.Errorf("%w: %w", ErrConstraint, err)
	}

	entry := g.log.WithFields(logrus.Fields{"op": op, "table": table})
	if errors.Is(err, ErrNotFound) {
		entry.Debug(err)
	} else {
		entry.WithError(err).Error("gateway call failed")
	}
	return &Error{Op: op, Table: table, Err: err}
}

var registry = map[string]func() interface{}{
	"restaurants":       func() interface{} { return &models.Restaurant{} },
	"menu_publications": func() interface{} { return &models.MenuPublication{} },
	"tables":            func() interface{} { return &models.Table{} },
	"orders":            func() interface{} { return &models.Order{} },
	"order_items":       func() interface{} { return &models.OrderItem{} },
	"products":          func() interface{} { return &models.Product{} },
	"categories":        func() interface{} { return &models.Category{} },
	"companies":         func() interface{} { return &models.Company{} },
	"employees":         func() interface{} { return &models.Employee{} },
	"notifications":     func() interface{} { return &models.Notification{} },
	"sales":             func() interface{} { return &models.Sale{} },
}

// KnownTable reports whether name is exposed through the name-based API.
func KnownTable(name string) bool {
	_, ok := registry[name]
	return ok
}

func newRecord(table string) (interface{}, error) {
	factory, ok := registry[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return factory(), nil
}

// columns returns the JSON names of a model's fields, which match its column names.
func columns(model interface{}) map[string]bool {
	cols := map[string]bool{}
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			name := strings.Split(f.Tag.Get("json"), ",")[0]
			if name != "" && name != "-" {
				cols[name] = true
			}
		}
	}
	walk(reflect.TypeOf(model).Elem())
	return cols
}

func checkColumns(model interface{}, keys map[string]interface{}) error {
	cols := columns(model)
	for k := range keys {
		if !cols[k] {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, k)
		}
	}
	return nil
}

func toRow(rec interface{}) (Row, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// fromRow overlays row onto rec.
func fromRow(row Row, rec interface{}) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, rec)
}

func versionField(rec interface{}) (reflect.Value, bool) {
	v := reflect.ValueOf(rec)
	if v.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	f := v.Elem().FieldByName("Version")
	if !f.IsValid() || !f.CanSet() || f.Kind() != reflect.Uint64 {
		return reflect.Value{}, false
	}
	return f, true
}

func tableName(db *gorm.DB, model interface{}) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", err
	}
	return stmt.Schema.Table, nil
}

func recordID(rec interface{}) uint {
	if v, ok := rec.(models.Versioned); ok {
		return v.GetID()
	}
	return 0
}

// logChange appends to db_changes inside the caller's transaction.
func logChange(tx *gorm.DB, table, action string, rec interface{}, at time.Time) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Create(&models.DBChange{
		TableName:  table,
		RecordID:   recordID(rec),
		ActionType: action,
		Payload:    string(payload),
		ChangedAt:  at,
	}).Error
}

// insert creates rec and logs it. tx must already be scoped.
func (g *Gateway) insert(tx *gorm.DB, table string, rec interface{}) error {
	if v := reflect.ValueOf(rec).Elem().FieldByName("Version"); v.IsValid() && v.Uint() == 0 {
		v.SetUint(1)
	}
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	return logChange(tx, table, models.ActionInsert, rec, g.now())
}

// save writes every column of rec and bumps its version. The write only lands
// when the stored version still equals rec's, so a row read before another
// writer's commit fails with ErrStaleVersion instead of overwriting it.
func (g *Gateway) save(tx *gorm.DB, table string, rec interface{}) error {
	f, ok := versionField(rec)
	if !ok {
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		return logChange(tx, table, models.ActionUpdate, rec, g.now())
	}

	read := f.Uint()
	f.SetUint(read + 1)
	res := tx.Model(rec).Where("version = ?", read).
		Select("*").Omit(clause.Associations).Updates(rec)
	if res.Error == nil && res.RowsAffected == 0 {
		res.Error = fmt.Errorf("%w: %s %d at version %d", ErrStaleVersion, table, recordID(rec), read)
	}
	if res.Error != nil {
		f.SetUint(read)
		return res.Error
	}
	return logChange(tx, table, models.ActionUpdate, rec, g.now())
}

func (g *Gateway) remove(tx *gorm.DB, table string, rec interface{}) error {
	res := tx.Delete(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return logChange(tx, table, models.ActionDelete, rec, g.now())
}

// Insert creates a row in the named table and returns it as stored.
func (g *Gateway) Insert(ctx context.Context, table string, row Row) (Row, error) {
	rec, err := newRecord(table)
	if err != nil {
		return nil, g.fail("insert", table, err)
	}
	if err := checkColumns(rec, row); err != nil {
		return nil, g.fail("insert", table, err)
	}
	if err := fromRow(row, rec); err != nil {
		return nil, g.fail("insert", table, err)
	}

	db, cancel := g.session(ctx)
	defer cancel()
	if err := db.Transaction(func(tx *gorm.DB) error { return g.insert(tx, table, rec) }); err != nil {
		return nil, g.fail("insert", table, err)
	}
	return toRow(rec)
}

// Select returns every row of the named table matching filter.
func (g *Gateway) Select(ctx context.Context, table string, filter Filter) ([]Row, error) {
	rec, err := newRecord(table)
	if err != nil {
		return nil, g.fail("select", table, err)
	}
	if err := checkColumns(rec, filter); err != nil {
		return nil, g.fail("select", table, err)
	}

	slice := reflect.New(reflect.SliceOf(reflect.TypeOf(rec).Elem()))
	db, cancel := g.session(ctx)
	defer cancel()
	q := db.Order("id")
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	if err := q.Find(slice.Interface()).Error; err != nil {
		return nil, g.fail("select", table, err)
	}

	var rows []Row
	if err := fromRowJSON(slice.Interface(), &rows); err != nil {
		return nil, g.fail("select", table, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

func fromRowJSON(src interface{}, dst interface{}) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Update overlays row onto the record with the given id.
func (g *Gateway) Update(ctx context.Context, table string, id uint, row Row) (Row, error) {
	rec, err := newRecord(table)
	if err != nil {
		return nil, g.fail("update", table, err)
	}
	if err := checkColumns(rec, row); err != nil {
		return nil, g.fail("update", table, err)
	}
	patch := make(Row, len(row))
	for k, v := range row {
		if k != "id" && k != "version" {
			patch[k] = v
		}
	}

	db, cancel := g.session(ctx)
	defer cancel()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(rec, id).Error; err != nil {
			return err
		}
		if err := fromRow(patch, rec); err != nil {
			return err
		}
		return g.save(tx, table, rec)
	})
	if err != nil {
		return nil, g.fail("update", table, err)
	}
	return toRow(rec)
}

// Delete removes the record with the given id.
func (g *Gateway) Delete(ctx context.Context, table string, id uint) error {
	rec, err := newRecord(table)
	if err != nil {
		return g.fail("delete", table, err)
	}

	db, cancel := g.session(ctx)
	defer cancel()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(rec, id).Error; err != nil {
			return err
		}
		return g.remove(tx, table, rec)
	})
	if err != nil {
		return g.fail("delete", table, err)
	}
	return nil
}
