package models

import "errors"

// Sentinel errors shared across services and transport layers.
var (
	// ErrCollectionNotFound: the vector collection has not been created yet.
	ErrCollectionNotFound = errors.New("collection not found - run collection create first")

	// ErrDimensionMismatch: a vector's length differs from the collection's
	// configured dimensionality. Upserts and searches abort before reaching
	// the store.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFormat: the file extension is not .pdf or .docx.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyDocument: extraction produced no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrEmptyQuery: the chat request carried no question text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrServiceUnavailable: the model provider circuit breaker is open.
	ErrServiceUnavailable = errors.New("model service temporarily unavailable")

	// ErrDocumentNotFound: no catalog record with the requested id.
	ErrDocumentNotFound = errors.New("document not found")
)
