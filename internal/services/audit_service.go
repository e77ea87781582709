package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"moneyminder/internal/logger"
	"moneyminder/internal/models"
)

// Audit actions.
const (
	AuditRegister          = "REGISTER"
	AuditVerifyEmail       = "VERIFY_EMAIL"
	AuditLogin             = "LOGIN"
	AuditSetup2FA          = "ENABLE_2FA"
	AuditActivate2FA       = "ACTIVATE_2FA"
	AuditDisable2FA        = "DISABLE_2FA"
	AuditUpdateProfile     = "UPDATE_PROFILE"
	AuditUpdateSummary     = "UPDATE_SUMMARY"
	AuditReconcileSummary  = "RECONCILE_SUMMARY"
	AuditCreateTransaction = "CREATE_TRANSACTION"
	AuditCreateGoal        = "CREATE_GOAL"
	AuditContributeGoal    = "CONTRIBUTE_GOAL"
	AuditUpdateGoal        = "UPDATE_GOAL"
	AuditDeleteGoal        = "DELETE_GOAL"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates an AuditServicer writing to the audit_logs table.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log appends one audit entry. Recording is best effort: a failed write is
// logged and the triggering request still succeeds.
func (s *auditService) Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Get().Errorw("audit write failed",
			"error", err, "user_id", userID, "action", action, "resource", resourceType+"/"+resourceID)
	}
}

// encodeChanges renders the change set as JSON. A nil set stores nothing.
func encodeChanges(action string, changes map[string]interface{}) string {
	if changes == nil {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Warnw("audit changes not serializable", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}
