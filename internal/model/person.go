package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User types
const (
	UserTypeAdmin    = "admin"
	UserTypeEmployee = "employee"
)

// Genders accepted for users, clients and children.
const (
	GenderFemale = "F"
	GenderMale   = "M"
)

// User is a login identity. EntryAllowed gates login and order registration.
// A self-registered employee waits with EntryAllowed false and no Employee
// row until an admin approves or denies it.
type User struct {
	ID           int64      `gorm:"primaryKey"`
	Name         string     `gorm:"type:varchar(120);not null"`
	Mail         string     `gorm:"type:varchar(120);uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	Type         string     `gorm:"type:varchar(20);not null"`
	EntryAllowed bool       `gorm:"not null;default:false"`
	CPF          *string    `gorm:"type:varchar(14);uniqueIndex"`
	BirthDate    *time.Time `gorm:"type:date"`
	Gender       *string    `gorm:"type:char(1)"`
	Phone        *string    `gorm:"type:varchar(20)"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Employee extends a User that registers conditionals and sales.
// Commission is a fraction applied to the employee's sale totals.
type Employee struct {
	ID         int64           `gorm:"primaryKey;autoIncrement:false"`
	Active     bool            `gorm:"not null;default:true"`
	Commission decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`

	User *User `gorm:"foreignKey:ID"`
}

func (Employee) TableName() string { return "employees" }

// Client is a customer. Address fields are snapshotted into receipts.
type Client struct {
	ID           int64   `gorm:"primaryKey"`
	Name         string  `gorm:"type:varchar(120);not null;index"`
	CPF          *string `gorm:"type:varchar(14)"`
	Mail         *string `gorm:"type:varchar(120)"`
	Phone        *string `gorm:"type:varchar(20)"`
	CEP          *string `gorm:"type:varchar(9)"`
	Address      *string
	City         *string
	Neighborhood *string
	State        *string `gorm:"type:varchar(2)"`
	Number       *string `gorm:"type:varchar(10)"`
	Complement   *string
	Gender       *string    `gorm:"type:char(1)"`
	BirthDate    *time.Time `gorm:"type:date"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Contacts []ClientContact `gorm:"foreignKey:ClientID"`
	Children []ClientChild   `gorm:"foreignKey:ClientID"`
}

func (Client) TableName() string { return "clients" }

// ClientContact is an extra way to reach a client, e.g. instagram or a
// second phone.
type ClientContact struct {
	ID       int64  `gorm:"primaryKey"`
	ClientID int64  `gorm:"not null;index"`
	Type     string `gorm:"type:varchar(20);not null"`
	Value    string `gorm:"type:varchar(120);not null"`
}

func (ClientContact) TableName() string { return "client_contacts" }

// ClientChild records a client's child and the size they currently wear.
type ClientChild struct {
	ID            int64     `gorm:"primaryKey"`
	ClientID      int64     `gorm:"not null;index"`
	Name          string    `gorm:"type:varchar(120);not null"`
	BirthDate     time.Time `gorm:"type:date;not null"`
	ProductSizeID int64     `gorm:"not null"`

	Size *ProductSize `gorm:"foreignKey:ProductSizeID"`
}

func (ClientChild) TableName() string { return "client_children" }

// AuthToken holds the single active token of a principal. A token is valid
// only while its issued_at equals the stored value.
type AuthToken struct {
	UserID   int64 `gorm:"primaryKey;autoIncrement:false"`
	IssuedAt int64 `gorm:"not null"`
}

func (AuthToken) TableName() string { return "auth_tokens" }
