package models

import "errors"

var (
	// ErrDocumentNotFound returned when a document ID has no record
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocumentStatus returned on an illegal status transition
	ErrInvalidDocumentStatus = errors.New("invalid document status")
)
