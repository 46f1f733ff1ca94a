package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"memberverify/internal/member/models"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/requestcontext"
)

const (
	// MaxBadgeSize bounds an uploaded badge photo.
	MaxBadgeSize = 5 << 20
	// RetentionWindow is how long a badge photo is kept before purge.
	RetentionWindow = 30 * 24 * time.Hour

	defaultBadgeExt = "jpg"
)

var allowedBadgeTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// Upload is a badge photo received from the member.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadBadge stores badge evidence for the token's member and schedules its
// purge. It records evidence only; verification happens elsewhere.
func (s *Service) UploadBadge(ctx context.Context, tokenString string, up *Upload) (*models.Member, error) {
	ctx, span := s.tracer.Start(ctx, "verification.UploadBadge")
	defer span.End()

	if strings.TrimSpace(tokenString) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "token is required")
	}
	if up == nil || up.Body == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "file is required")
	}
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	contentType, err := validateUpload(up)
	if err != nil {
		s.countUpload("rejected")
		return nil, err
	}
	span.SetAttributes(attribute.String("member.id", claims.MemberID), attribute.Int64("badge.size", up.Size))

	current, err := s.members.FindByID(ctx, claims.MemberID)
	if err == nil {
		err = checkBinding(claims, current)
	}
	if err == nil && current.IsVerified {
		err = dErrors.New(dErrors.CodeConflict, "member is already verified")
	}
	if err != nil {
		s.countUpload("rejected")
		return nil, translate(err, "failed to load member")
	}

	now := requestcontext.Now(ctx)
	key := BadgeObjectKey(claims.MemberID, up.Filename, now)

	if err := s.artifacts.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
		span.RecordError(err)
		s.countUpload("storage_error")
		s.logger.ErrorContext(ctx, "badge upload to storage failed", "member_id", claims.MemberID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store badge")
	}

	var previous string
	m, err := s.members.Update(ctx, claims.MemberID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		if err := checkBinding(claims, cur); err != nil {
			return nil, err
		}
		if cur.IsVerified {
			return nil, dErrors.New(dErrors.CodeConflict, "member is already verified")
		}
		if cur.BadgeObjectPath != nil {
			previous = *cur.BadgeObjectPath
		}
		cur.SelectMethod(models.MethodBadge, now)
		cur.SetBadge(key, now.Add(RetentionWindow))
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventBadgeUploaded, map[string]any{"path": key}, now),
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		s.countUpload("update_error")
		if delErr := s.artifacts.Delete(ctx, key); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove badge after rejected update",
				"member_id", claims.MemberID, "path", key, "error", delErr)
		}
		return nil, translate(err, "failed to record badge upload")
	}

	if previous != "" && previous != key {
		if err := s.artifacts.Delete(ctx, previous); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove replaced badge",
				"member_id", m.ID, "path", previous, "error", err)
		}
	}

	s.countUpload("stored")
	s.logger.InfoContext(ctx, "badge uploaded", "member_id", m.ID, "purge_at", m.ArtifactsPurgeAt)
	return m, nil
}

// BadgeObjectKey derives a unique storage key from the member, upload time and
// the original file extension.
func BadgeObjectKey(memberID, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d.%s", memberID, at.UnixNano(), badgeExt(filename))
}

func badgeExt(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || len(ext) > 5 {
		return defaultBadgeExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultBadgeExt
		}
	}
	return ext
}

// validateUpload enforces size and image type and returns the stored content type.
func validateUpload(up *Upload) (string, error) {
	if up.Size <= 0 {
		return "", dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if up.Size > MaxBadgeSize {
		return "", dErrors.New(dErrors.CodeValidation, "file exceeds 5MB limit")
	}

	contentType := ""
	if mt, _, err := mime.ParseMediaType(up.ContentType); err == nil {
		contentType = strings.ToLower(mt)
	}
	if _, ok := allowedBadgeTypes[contentType]; ok {
		return contentType, nil
	}
	ext := badgeExt(up.Filename)
	for ct, e := range allowedBadgeTypes {
		if e == ext || (ext == "jpeg" && e == "jpg") {
			return ct, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "file must be a JPEG, PNG, WEBP or HEIC image")
}

func (s *Service) countUpload(outcome string) {
	if s.metrics != nil {
		s.metrics.IncBadgeUpload(outcome)
	}
}
