package domain

import (
	"strings"
	"time"
)

// KYCStatus KYC 审核状态
type KYCStatus string

const (
	KYCNone     KYCStatus = "none"
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

// UserProfile 用户资料与 KYC（USERS/{userId}）
type UserProfile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`

	KYCStatus       KYCStatus  `json:"kyc_status"`
	KYCDocumentType string     `json:"kyc_document_type,omitempty"`
	KYCDocumentURL  string     `json:"kyc_document_url,omitempty"`
	KYCSubmittedAt  *time.Time `json:"kyc_submitted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeUsername 用户名索引键：去空白、小写
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SubmitKYC 记录 KYC 材料引用，文件本身存放在外部存储
func (u *UserProfile) SubmitKYC(docType, docURL string, now time.Time) error {
	if u.KYCStatus == KYCApproved {
		return ErrKYCAlreadyApproved
	}
	u.KYCStatus = KYCPending
	u.KYCDocumentType = docType
	u.KYCDocumentURL = docURL
	u.KYCSubmittedAt = &now
	u.UpdatedAt = now
	return nil
}
