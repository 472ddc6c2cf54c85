package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSealed is returned when declaring into a database that has already
// been instantiated. The resolution cache is only sound while the
// declarations stay fixed.
var ErrSealed = errors.New("database is sealed: declarations are immutable once an instance exists")

// DuplicateDataError reports a second Data declaration under an existing name.
type DuplicateDataError struct {
	Name string
}

func (e *DuplicateDataError) Error() string {
	return fmt.Sprintf("data %q already declared", e.Name)
}

// InvalidDeclarationError reports a structurally unusable declaration, such
// as a computer producing no coordinates or a data spec without a location
// function.
type InvalidDeclarationError struct {
	Kind   string
	Name   string
	Reason string
}

func (e *InvalidDeclarationError) Error() string {
	return fmt.Sprintf("invalid %s declaration %q: %s", e.Kind, e.Name, e.Reason)
}

// Database is an immutable-after-instantiation set of coordinate computers
// and data specs. It performs no dependency resolution itself; it is the
// input to resolve.New.
type Database struct {
	name      string
	computers []CoordComputer
	data      map[string]Data
	dataOrder []string
	sealed    bool
}

// New returns an empty database with the given name.
func New(name string) *Database {
	return &Database{name: name, data: make(map[string]Data)}
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// Declare adds a declaration. Declaration is a closed sum, so the switch
// below is exhaustive; the default arm guards against a future variant
// being added without dispatch logic.
func (db *Database) Declare(d Declaration) error {
	if db.sealed {
		return ErrSealed
	}
	switch d := d.(type) {
	case CoordComputer:
		if len(d.Coords) == 0 {
			return &InvalidDeclarationError{Kind: "coordinate computer", Name: strings.Join(d.Coords, ","), Reason: "produces no coordinates"}
		}
		if d.Compute == nil {
			return &InvalidDeclarationError{Kind: "coordinate computer", Name: strings.Join(d.Coords, ","), Reason: "missing compute function"}
		}
		db.computers = append(db.computers, d)
		return nil
	case Data:
		if d.Name == "" {
			return &InvalidDeclarationError{Kind: "data", Name: d.Name, Reason: "missing name"}
		}
		if d.Location == nil {
			return &InvalidDeclarationError{Kind: "data", Name: d.Name, Reason: "missing location function"}
		}
		if _, exists := db.data[d.Name]; exists {
			return &DuplicateDataError{Name: d.Name}
		}
		db.data[d.Name] = d
		db.dataOrder = append(db.dataOrder, d.Name)
		return nil
	default:
		return fmt.Errorf("cannot declare object of type %T", d)
	}
}

// AddCoordComputer declares a coordinate computer.
func (db *Database) AddCoordComputer(cc CoordComputer) error { return db.Declare(cc) }

// AddData declares a data spec.
func (db *Database) AddData(d Data) error { return db.Declare(d) }

// Computers returns the declared coordinate computers in declaration order.
// The slice is shared; callers must not mutate it.
func (db *Database) Computers() []CoordComputer { return db.computers }

// Data returns the data spec with the given name.
func (db *Database) Data(name string) (Data, bool) {
	d, ok := db.data[name]
	return d, ok
}

// DataNames returns declared data names in declaration order.
func (db *Database) DataNames() []string {
	return append([]string(nil), db.dataOrder...)
}

// Seal freezes the database. Further Declare calls fail with ErrSealed.
func (db *Database) Seal() { db.sealed = true }

// Join merges the declarations of several databases into a new one. This is
// purely declarative union; no dependency resolution happens here. Name
// collisions on data still fail.
func Join(name string, dbs ...*Database) (*Database, error) {
	if name == "" {
		names := make([]string, len(dbs))
		for i, db := range dbs {
			names[i] = db.name
		}
		name = "joined(" + strings.Join(names, ", ") + ")"
	}
	out := New(name)
	for _, db := range dbs {
		for _, cc := range db.computers {
			if err := out.Declare(cc); err != nil {
				return nil, err
			}
		}
		for _, dn := range db.dataOrder {
			if err := out.Declare(db.data[dn]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
