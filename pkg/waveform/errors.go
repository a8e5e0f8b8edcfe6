package waveform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidBatch  = errors.New("invalid batch")
	ErrInvalidWindow = errors.New("invalid window")
)

// AmbiguousMappingError reports an observation type that maps to more than one display name.
// It is a data quality warning, never a reason to stop processing.
type AmbiguousMappingError struct {
	ObservationTypeID int64
	Names             []string
}

func (e *AmbiguousMappingError) Error() string {
	return fmt.Sprintf("ambiguous mapping: observation type %d has names [%s]",
		e.ObservationTypeID, strings.Join(e.Names, ", "))
}

// AmbiguousUnitError reports more than one unit within a single result set.
type AmbiguousUnitError struct {
	Key   StreamKey
	Units []string
}

func (e *AmbiguousUnitError) Error() string {
	return fmt.Sprintf("duplicate units for stream %s: [%s]", e.Key, strings.Join(e.Units, ", "))
}

// DataSourceError wraps a connectivity or query failure of the backing store.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// WrapSourceError tags err as a data source failure. Nil stays nil and
// errors already tagged are returned unchanged.
func WrapSourceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dsErr *DataSourceError
	if errors.As(err, &dsErr) {
		return err
	}
	return &DataSourceError{Op: op, Err: err}
}
