package domain

import "time"

// PayoutAccount 用户的出金目标（WALLET/{userId}/wallets/{walletId}）
type PayoutAccount struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Label  string `json:"label,omitempty"`
	SelectedWallet
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
