package main

import (
	"errors"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// exitCodeFor keeps failure classes distinguishable in scripts: 2 for bad
// input or config, 3 for timeouts, 4 when both backends failed, 1 otherwise.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeConfigLoad, apperrors.ErrCodeConfigParse, apperrors.ErrCodeConfigInvalid:
		return 2
	case apperrors.ErrCodeTimeout:
		return 3
	case apperrors.ErrCodeAggregate:
		return 4
	default:
		return 1
	}
}
