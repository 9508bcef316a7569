package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OwnerRestaurant = "restaurant"
	OwnerDriver     = "driver"
	OwnerCustomer   = "customer"
)

const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

const (
	TxPending = "pending"
	TxSuccess = "success"
	TxFailed  = "failed"
)

// WalletAccount is a per-owner running balance. (owner_type, owner_id) is
// unique; rows are created lazily on first reference.
type WalletAccount struct {
	bun.BaseModel `bun:"table:wallet_accounts"`

	ID                     string                 `bun:"id,pk" json:"id"`
	OwnerType              string                 `bun:"owner_type,notnull" json:"owner_type"`
	OwnerID                string                 `bun:"owner_id,notnull" json:"owner_id"`
	Balance                float64                `bun:"balance,notnull,default:0" json:"balance"`
	PaystackCustomerCode   string                 `bun:"paystack_customer_code,nullzero" json:"paystack_customer_code,omitempty"`
	PaystackVirtualAccount map[string]interface{} `bun:"paystack_virtual_account,type:jsonb,nullzero" json:"paystack_virtual_account,omitempty"`
	CreatedAt              time.Time              `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt              time.Time              `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type WalletTransaction struct {
	bun.BaseModel `bun:"table:wallet_transactions"`

	ID          string                 `bun:"id,pk" json:"id"`
	WalletID    string                 `bun:"wallet_id,notnull" json:"wallet_id"`
	Type        string                 `bun:"type,notnull" json:"type"`
	Amount      float64                `bun:"amount,notnull" json:"amount"`
	Reference   string                 `bun:"reference,unique,notnull" json:"reference"`
	Description string                 `bun:"description,nullzero" json:"description,omitempty"`
	Meta        map[string]interface{} `bun:"meta,type:jsonb,nullzero" json:"meta,omitempty"`
	Status      string                 `bun:"status,notnull,default:'pending'" json:"status"`
	CreatedAt   time.Time              `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TransferRecipient caches the payment provider's recipient handle per owner
// so repeat withdrawals skip recipient creation.
type TransferRecipient struct {
	bun.BaseModel `bun:"table:transfer_recipients"`

	ID            string                 `bun:"id,pk" json:"id"`
	OwnerType     string                 `bun:"owner_type,notnull" json:"owner_type"`
	OwnerID       string                 `bun:"owner_id,notnull" json:"owner_id"`
	RecipientCode string                 `bun:"recipient_code,notnull" json:"recipient_code"`
	Details       map[string]interface{} `bun:"details,type:jsonb,nullzero" json:"details,omitempty"`
	CreatedAt     time.Time              `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
