package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDistributor   Role = "distributor"
	RoleDeliveryStaff Role = "delivery_staff"
	RoleCustomer      Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDistributor, RoleDeliveryStaff, RoleCustomer:
		return true
	}
	return false
}

// Account is any party in the network. Balance is signed: negative means the
// account owes money. DistributorID and DeliveryStaffID are weak references.
type Account struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserName        string        `gorm:"column:user_name;not null" json:"user_name"`
	Email           string        `gorm:"not null;default:''" json:"email"`
	Role            Role          `gorm:"type:varchar(32);not null;index" json:"role"`
	RoleAccepted    bool          `gorm:"not null;default:false" json:"role_accepted"`
	IsPaused        bool          `gorm:"not null;default:false" json:"is_paused"`
	Balance         int64         `gorm:"not null;default:0" json:"balance"`
	DistributorID   *snowflake.ID `gorm:"index" json:"distributor_id,omitempty"`
	DeliveryStaffID *snowflake.ID `json:"delivery_staff_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// BankDetails are optional payment coordinates printed on bills.
type BankDetails struct {
	AccountID  snowflake.ID `gorm:"primaryKey" json:"account_id"`
	BankName   string       `gorm:"not null" json:"bank_name"`
	AccountNo  string       `gorm:"column:account_no;not null" json:"account_no"`
	IFSCCode   string       `gorm:"column:ifsc_code;not null" json:"ifsc_code"`
	HolderName string       `gorm:"not null" json:"holder_name"`
}

func (BankDetails) TableName() string { return "bank_accounts" }
