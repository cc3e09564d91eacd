package batch

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation_error")
	ErrPersistence = errors.New("persistence_error")
	ErrNotEligible = errors.New("not_eligible")
	ErrEnumeration = errors.New("enumeration_error")
)

type Kind string

const (
	KindNone        Kind = ""
	KindValidation  Kind = "validation"
	KindPersistence Kind = "persistence"
	KindNotEligible Kind = "not_eligible"
	KindEnumeration Kind = "enumeration"
)

func Validation(err error) error  { return wrap(ErrValidation, err) }
func Persistence(err error) error { return wrap(ErrPersistence, err) }
func NotEligible(err error) error { return wrap(ErrNotEligible, err) }
func Enumeration(err error) error { return wrap(ErrEnumeration, err) }

func wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// KindOf reports which class of the taxonomy err belongs to.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotEligible):
		return KindNotEligible
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEnumeration):
		return KindEnumeration
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindNone
	}
}
