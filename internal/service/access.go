package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/repository"
)

// AttachmentResolver turns an attachment reference into a fetchable URL.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// AccessChecker decides whether userID may act on threadID and returns the
// thread owner. It fails with ErrNotFound or ErrPermission.
type AccessChecker interface {
	Check(ctx context.Context, threadID, userID string) (string, error)
}

// BaseURLResolver serves attachments from a fixed base URL.
type BaseURLResolver struct {
	BaseURL string
}

func (r BaseURLResolver) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.ContainsAny(ref, "/\\") {
		return "", fmt.Errorf("%w: invalid attachment reference %q", app_errors.ErrValidation, ref)
	}
	return strings.TrimRight(r.BaseURL, "/") + "/" + ref, nil
}

// OwnerChecker grants access to the user that owns the thread.
type OwnerChecker struct {
	Repo repository.Repository
}

func (c OwnerChecker) Check(ctx context.Context, threadID, userID string) (string, error) {
	thread, err := c.Repo.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: thread %s", app_errors.ErrNotFound, threadID)
		}
		return "", err
	}
	if thread.UserID != userID {
		return thread.UserID, fmt.Errorf("%w: thread %s", app_errors.ErrPermission, threadID)
	}
	return thread.UserID, nil
}
