package errors

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/vango-dev/vstore/pkg/store"
)

// Category groups codes by the layer that raised them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryStore     Category = "store"
	CategoryTransport Category = "transport"
	CategoryCLI       Category = "cli"
)

// Location represents a position in a configuration file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a coded CLI diagnostic with optional location and suggestion.
type Error struct {
	// Code is a unique error identifier (e.g., "V100").
	Code string

	// Category is the error type.
	Category Category

	// Message is the one-line summary from the code registry.
	Message string

	// Detail explains this occurrence.
	Detail string

	// Location is the file position where the error occurred.
	Location *Location

	// Context contains the surrounding file lines.
	Context []string

	// Suggestion tells the user what to try next.
	Suggestion string

	// Wrapped is the cause, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file position to the error and reads the lines
// around it.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion sets the suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail sets the detail.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap records err as the cause.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// readContextLines returns up to contextSize lines of filename centred on targetLine.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError converts err into an Error. Store and transport errors get
// their own codes; anything else uses fallback.
func FromError(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var te *store.TransportError
	switch {
	case errors.Is(err, store.ErrStoreNotFound):
		return New("V200").WithDetail(err.Error()).Wrap(err)
	case errors.Is(err, store.ErrDuplicateStore):
		return New("V201").WithDetail(err.Error()).Wrap(err)
	case errors.Is(err, store.ErrInvalidDeclaration):
		return New("V202").WithDetail(err.Error()).Wrap(err)
	case errors.Is(err, store.ErrUnknownAction):
		return New("V203").WithDetail(err.Error()).Wrap(err)
	case errors.As(err, &te):
		return fromTransport(te)
	}
	return New(fallback).WithDetail(err.Error()).Wrap(err)
}

func fromTransport(te *store.TransportError) *Error {
	switch te.Kind {
	case store.KindHTTP:
		return New("V300").
			WithDetail(fmt.Sprintf("The server responded with status %d.", te.Status)).
			Wrap(te)
	case store.KindNoResponse:
		return New("V301").
			WithDetail(te.Message).
			WithSuggestion("Check that transport.baseURL points at a running server").
			Wrap(te)
	case store.KindRequestSetup:
		return New("V302").WithDetail(te.Message).Wrap(te)
	default:
		return New("V303").Wrap(te)
	}
}

// FromSlotError converts the error stored in an async slot.
func FromSlotError(v any) *Error {
	var ae *store.ActionError
	err, isErr := v.(error)
	switch {
	case v == nil:
		return nil
	case isErr && errors.As(err, &ae):
		switch {
		case ae.Status > 0:
			e := New("V300").WithDetail(fmt.Sprintf("The server responded with status %d.", ae.Status))
			if ae.Data != nil {
				e.Detail += fmt.Sprintf(" Body: %v", ae.Data)
			}
			return e.Wrap(ae)
		case ae.Code == store.CodeNoServerResponse:
			return New("V301").
				WithSuggestion("Check that transport.baseURL points at a running server").
				Wrap(ae)
		default:
			return New("V302").WithDetail(ae.Message).Wrap(ae)
		}
	case isErr:
		return New("V204").WithDetail(err.Error()).Wrap(err)
	default:
		return New("V204").WithDetail(fmt.Sprintf("%v", v))
	}
}
