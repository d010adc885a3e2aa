package factdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for fact database operations.
var (
	// ErrSchema is matched by every SchemaError via errors.Is.
	ErrSchema = errors.New("fact database schema violation")

	// ErrNotFound is matched by every NotFoundError via errors.Is.
	ErrNotFound = errors.New("name not found in any namespace")
)

// SchemaError reports a malformed or inconsistent fact database.
type SchemaError struct {
	Path      string // file the database was read from, if any
	Namespace Namespace
	Name      string
	Reason    string
}

func (e *SchemaError) Error() string {
	loc := ""
	if e.Path != "" {
		loc = e.Path + ": "
	}
	switch {
	case e.Namespace != "" && e.Name != "":
		return fmt.Sprintf("%s%s %q: %s", loc, e.Namespace, e.Name, e.Reason)
	case e.Namespace != "":
		return fmt.Sprintf("%s%s: %s", loc, e.Namespace, e.Reason)
	default:
		return loc + e.Reason
	}
}

// Is makes errors.Is(err, ErrSchema) true for any SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// NotFoundError is returned by Lookup when a name is absent from all
// three namespaces.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q is not a relation, counter or interning table", e.Name)
}

// Is makes errors.Is(err, ErrNotFound) true for any NotFoundError.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func schemaErr(ns Namespace, name, format string, args ...any) *SchemaError {
	return &SchemaError{Namespace: ns, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// withPath attaches a file path to a SchemaError, leaving other errors untouched.
func withPath(err error, path string) error {
	var se *SchemaError
	if errors.As(err, &se) && se.Path == "" {
		cp := *se
		cp.Path = path
		return &cp
	}
	return err
}
