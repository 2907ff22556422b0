package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases
var (
	// ErrDuplicateTable indicates a source file holds more than one table with the same id
	ErrDuplicateTable = errors.New("duplicate table id")

	// ErrCertificateNotFound indicates no record exists for a digest
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrInvalidRule indicates a rule catalog pattern failed to compile
	ErrInvalidRule = errors.New("invalid rule pattern")

	// ErrUnreadableText indicates a text file could not be decoded even line by line
	ErrUnreadableText = errors.New("unreadable text")

	// ErrStagePrerequisite indicates a stage ran before the stage it depends on
	ErrStagePrerequisite = errors.New("stage prerequisite not met")

	// ErrMergeInvariant indicates the merged record count differs from the distinct digest count
	ErrMergeInvariant = errors.New("merge produced inconsistent record set")

	// ErrEmptyPrimaryKey indicates a digest was computed over an empty key
	ErrEmptyPrimaryKey = errors.New("empty primary key")
)

// SourceFormatError reports a raw source file violating a structural assumption.
type SourceFormatError struct {
	File string
	Err  error
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("source %s: %v", e.File, e.Err)
}

func (e *SourceFormatError) Unwrap() error {
	return e.Err
}

// RuleError wraps a pattern compilation failure with its location in the catalog.
type RuleError struct {
	Group string
	Rule  string
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s/%q: %v", e.Group, e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// StoreError wraps record store failures with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
