package dashboard

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"expensedash/internal/core"

	"github.com/go-playground/validator/v10"
)

// ExpenseInput is the add-expense form as submitted by a user.
type ExpenseInput struct {
	Date          string `json:"date" form:"date" validate:"required,datetime=2006-01-02"`
	Merchant      string `json:"merchant" form:"merchant" validate:"required,max=200"`
	Category      string `json:"category" form:"category" validate:"required,category"`
	Amount        string `json:"amount" form:"amount" validate:"required"`
	PaymentMethod string `json:"payment_method" form:"payment_method" validate:"required,payment_method"`
	Notes         string `json:"notes" form:"notes" validate:"max=1000"`
	ReceiptImage  string `json:"receipt_image" form:"receipt_image" validate:"omitempty,max=2048"`
}

// ValidationError lists the rejected input fields with a message for each.
type ValidationError struct {
	Fields map[string]string
	causes []error
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid expense: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error { return e.causes }

func (e *ValidationError) add(field string, cause error) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = cause.Error()
	e.causes = append(e.causes, cause)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return core.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return core.PaymentMethod(fl.Field().String()).IsValid()
	})
	return v
}

var fieldSentinels = map[string]error{
	core.FieldMerchant:      core.ErrEmptyMerchant,
	core.FieldAmount:        core.ErrInvalidAmount,
	core.FieldCategory:      core.ErrInvalidCategory,
	core.FieldPaymentMethod: core.ErrInvalidPaymentMethod,
	core.FieldDate:          core.ErrMissingDate,
}

func tagMessage(fe validator.FieldError) error {
	switch {
	case fe.Field() == core.FieldMerchant && fe.Tag() == "max":
		return core.ErrMerchantTooLong
	case fe.Tag() == "datetime":
		return core.ErrInvalidDate
	case fe.Tag() == "max":
		return fmt.Errorf("must be at most %s characters", fe.Param())
	}
	if s, ok := fieldSentinels[fe.Field()]; ok {
		return s
	}
	return fmt.Errorf("failed %s", fe.Tag())
}

// toExpense validates in and converts it to a storable expense.
func (c *Controller) toExpense(in ExpenseInput) (core.Expense, error) {
	in.Merchant = strings.TrimSpace(in.Merchant)
	in.Category = strings.TrimSpace(in.Category)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" {
		in.Date = c.now().UTC().Format("2006-01-02")
	}

	verr := &ValidationError{Fields: map[string]string{}}
	if err := c.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return core.Expense{}, err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), tagMessage(fe))
		}
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		verr.add(core.FieldAmount, core.ErrInvalidAmount)
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		verr.add(core.FieldDate, core.ErrInvalidDate)
	}
	if len(verr.Fields) > 0 {
		return core.Expense{}, verr
	}

	e := core.Expense{
		UserID:        core.DefaultUserID,
		Date:          date,
		Merchant:      in.Merchant,
		Category:      core.Category(in.Category),
		Amount:        amount,
		Currency:      core.DefaultCurrency,
		PaymentMethod: core.PaymentMethod(in.PaymentMethod),
		Items:         []string{},
		ReceiptImage:  strings.TrimSpace(in.ReceiptImage),
		Notes:         in.Notes,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
