package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Groceries     Category = "Groceries"
	FoodBeverage  Category = "Food & Beverage"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Rent          Category = "Rent"
	Subscriptions Category = "Subscriptions"
	Shopping      Category = "Shopping"
	Parking       Category = "Parking"
	AppPurchases  Category = "App Purchases"
	OtherCategory Category = "Other"
	Uncategorized Category = "Uncategorized" // fill value for stored records without a category
)

const (
	CreditCard  PaymentMethod = "Credit Card"
	Debit       PaymentMethod = "Debit"
	Cash        PaymentMethod = "Cash"
	OtherMethod PaymentMethod = "Other"
)

const (
	DefaultUserID   = "default"
	DefaultCurrency = "CAD"
)

type (
	Category      string
	PaymentMethod string

	// Document is the stored shape of a record, keyed by snake_case field names.
	Document map[string]any

	// RawRecord is a document as returned by a gateway, with its store-assigned id.
	RawRecord struct {
		ID     string
		Fields Document
	}

	Expense struct {
		ID            string
		UserID        string
		Date          time.Time
		Merchant      string
		Category      Category
		Amount        decimal.Decimal
		Currency      string
		PaymentMethod PaymentMethod
		Items         []string
		ReceiptImage  string // empty means no image
		Notes         string
	}
)

// Stored field names.
const (
	FieldUserID        = "user_id"
	FieldDate          = "date"
	FieldMerchant      = "merchant"
	FieldCategory      = "category"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldPaymentMethod = "payment_method"
	FieldItems         = "items"
	FieldReceiptImage  = "receipt_image"
	FieldNotes         = "notes"
)

var (
	ErrEmptyMerchant        = errors.New("merchant is required")
	ErrMerchantTooLong      = errors.New("merchant too long (max 200 characters)")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidCategory      = errors.New("unknown category")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrMissingDate          = errors.New("date cannot be zero")
	ErrInvalidDate          = errors.New("date must be YYYY-MM-DD")
)

// Categories returns the categories offered for new expenses, in display order.
func Categories() []Category {
	return []Category{
		Groceries, FoodBeverage, Transport, Utilities, Rent,
		Subscriptions, Shopping, Parking, AppPurchases, OtherCategory,
	}
}

// PaymentMethods returns the accepted payment methods, in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{CreditCard, Debit, Cash, OtherMethod}
}

func (c Category) IsValid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) IsValid() bool {
	for _, v := range PaymentMethods() {
		if p == v {
			return true
		}
	}
	return false
}

// Validate checks the write-time invariants. Stored records are never re-validated.
func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	merchant := strings.TrimSpace(e.Merchant)
	if merchant == "" {
		return ErrEmptyMerchant
	}
	if len(merchant) > 200 {
		return ErrMerchantTooLong
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !e.PaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Document returns the stored shape of the expense. The id is not part of it.
func (e Expense) Document() Document {
	items := e.Items
	if items == nil {
		items = []string{}
	}
	return Document{
		FieldUserID:        e.UserID,
		FieldDate:          e.Date.UTC().Format(time.RFC3339),
		FieldMerchant:      strings.TrimSpace(e.Merchant),
		FieldCategory:      string(e.Category),
		FieldAmount:        e.Amount.StringFixed(2),
		FieldCurrency:      e.Currency,
		FieldPaymentMethod: string(e.PaymentMethod),
		FieldItems:         items,
		FieldReceiptImage:  e.ReceiptImage,
		FieldNotes:         e.Notes,
	}
}

// Month returns the calendar month bucket of the expense as "YYYY-MM".
func (e Expense) Month() string {
	return MonthKey(e.Date)
}

// MonthKey truncates t to its calendar month and formats it as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
