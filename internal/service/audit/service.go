package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
)

const defaultListLimit = 500

// Service writes and reads the two append-only log tables. Writes are
// best-effort: a failed audit insert is logged server-side and swallowed.
type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// LogAction records a system/domain action in audit_logs. The result is
// derived from opErr; userCode is nil for system-initiated actions.
func (s *Service) LogAction(ctx context.Context, userCode *string, action string, resourceType, resourceID *string, details string, opErr error, metadata interface{}) {
	entry := &model.AuditLog{
		ID:           uuid.New(),
		UserCode:     userCode,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Result:       model.AuditResultSuccess,
	}
	if opErr != nil {
		entry.Result = model.AuditResultFailed
		msg := opErr.Error()
		entry.ErrorMessage = &msg
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}

	if err := s.repo.CreateLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("audit log write failed")
	}
}

// LogLogin records an auth event in login_audit.
func (s *Service) LogLogin(ctx context.Context, userCode *string, action, details string, opErr error, ipAddress string) {
	entry := &model.LoginAudit{
		ID:        uuid.New(),
		UserCode:  userCode,
		Action:    action,
		Details:   details,
		Result:    model.AuditResultSuccess,
		IPAddress: ipAddress,
	}
	if opErr != nil {
		entry.Result = model.AuditResultFailed
		msg := opErr.Error()
		entry.ErrorMessage = &msg
	}

	if err := s.repo.CreateLoginAudit(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("login audit write failed")
	}
}

// ListEntries merges both physical log tables into the unified display
// shape, applying the caller's timezone offset, free-text search, and
// action-family filter.
func (s *Service) ListEntries(ctx context.Context, query *model.AuditLogQuery) ([]*model.AuditEntry, error) {
	from, to := query.UTCBounds()
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	logs, err := s.repo.ListLogs(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit logs: %w", err)
	}
	loginLogs, err := s.repo.ListLoginAudits(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read login audits: %w", err)
	}

	entries := make([]*model.AuditEntry, 0, len(logs)+len(loginLogs))
	for _, l := range logs {
		entries = append(entries, systemEntry(l))
	}
	for _, l := range loginLogs {
		entries = append(entries, authEntry(l))
	}

	entries = filterFamily(entries, query.Family)
	if query.Search != "" {
		entries = filterSearch(entries, query.Search)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Stats aggregates success/failure counts per action over both tables.
func (s *Service) Stats(ctx context.Context, query *model.AuditLogQuery) (*model.AuditStats, error) {
	entries, err := s.ListEntries(ctx, query)
	if err != nil {
		return nil, err
	}

	stats := &model.AuditStats{
		Total:    len(entries),
		ByAction: make(map[string]model.ActionStat),
	}
	for _, e := range entries {
		stat := stats.ByAction[e.Action]
		if e.Result == model.AuditResultSuccess {
			stat.Success++
		} else {
			stat.Failed++
		}
		stats.ByAction[e.Action] = stat
	}
	return stats, nil
}

// Cleanup purges audit rows older than the retention cutoff.
func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, before)
}

func systemEntry(l *model.AuditLog) *model.AuditEntry {
	target := ""
	if l.ResourceType != nil {
		target = *l.ResourceType
		if l.ResourceID != nil {
			target = fmt.Sprintf("%s:%s", target, *l.ResourceID)
		}
	}
	return &model.AuditEntry{
		ID:        l.ID,
		Timestamp: l.CreatedAt,
		UserCode:  deref(l.UserCode),
		Action:    l.Action,
		Target:    target,
		Details:   l.Details,
		Result:    l.Result,
		Source:    "system",
	}
}

func authEntry(l *model.LoginAudit) *model.AuditEntry {
	return &model.AuditEntry{
		ID:        l.ID,
		Timestamp: l.CreatedAt,
		UserCode:  deref(l.UserCode),
		Action:    l.Action,
		Target:    l.IPAddress,
		Details:   l.Details,
		Result:    l.Result,
		Source:    "auth",
	}
}

func filterFamily(entries []*model.AuditEntry, family string) []*model.AuditEntry {
	switch family {
	case model.AuditFamilyKeysOnly:
		out := entries[:0]
		for _, e := range entries {
			if model.IsKeyAction(e.Action) {
				out = append(out, e)
			}
		}
		return out
	case model.AuditFamilyExcludeKeys:
		out := entries[:0]
		for _, e := range entries {
			if !model.IsKeyAction(e.Action) {
				out = append(out, e)
			}
		}
		return out
	default:
		return entries
	}
}

func filterSearch(entries []*model.AuditEntry, search string) []*model.AuditEntry {
	needle := strings.ToLower(search)
	out := entries[:0]
	for _, e := range entries {
		haystack := strings.ToLower(strings.Join([]string{
			e.UserCode, e.Action, e.Target, e.Details, e.Result,
		}, " "))
		if strings.Contains(haystack, needle) {
			out = append(out, e)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
