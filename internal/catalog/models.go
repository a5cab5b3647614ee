package catalog

import (
	"errors"
	"fmt"
	"time"
)

type Product struct {
	ID           string
	Name         string
	CountInStock int // derived: sum of all size stocks, never written directly
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Variant struct {
	ID        string
	ProductID string
	Color     string
}

type Size struct {
	ID        string
	VariantID string
	Label     string
	Stock     int
	Price     int64
}

// Reservation is the frozen result of a successful stock decrement. The
// snapshot fields travel onto the order line so later product edits never
// rewrite history.
type Reservation struct {
	ProductID    string
	VariantID    string
	SizeID       string
	ProductName  string
	VariantColor string
	SizeLabel    string
	Qty          int
	UnitPrice    int64
}

type SizeQty struct {
	SizeID string `json:"size_id"`
	Qty    int    `json:"qty"`
}

var (
	ErrSizeNotFound     = errors.New("size not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrVariantAmbiguous = errors.New("variant match is ambiguous")
)

type InsufficientStockError struct {
	SizeID    string
	SizeLabel string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for size %s: requested %d, available %d",
		e.SizeLabel, e.Requested, e.Available)
}
