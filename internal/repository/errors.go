package repository

import "errors"

// ErrNotFound is a repository-specific sentinel error. It is returned when a
// query for a single entity (e.g., GetThread, GetStreamingMessage) finds no rows.
//
// The service layer translates it into app_errors.ErrNotFound, keeping the
// driver's sql.ErrNoRows out of the business logic.
var ErrNotFound = errors.New("repository: not found")
