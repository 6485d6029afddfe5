package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents a catalog product. Prices are VAT-inclusive; the
// VAT-exclusive base is derived, never stored on the cart side.
type Product struct {
	ID            int64            `db:"id" json:"id"`
	SKU           string           `db:"sku" json:"sku"`
	Name          string           `db:"name" json:"name"`
	CategoryID    int64            `db:"category_id" json:"category_id"`
	PriceWithVAT  decimal.Decimal  `db:"price_with_vat" json:"price_with_vat"`
	SalePrice     *decimal.Decimal `db:"sale_price" json:"sale_price,omitempty"`
	VATRate       decimal.Decimal  `db:"vat_rate" json:"vat_rate"`
	VATMode       string           `db:"vat_mode" json:"vat_mode"`
	StockQuantity int              `db:"stock_quantity" json:"stock_quantity"`
	TrackStock    bool             `db:"track_stock" json:"track_stock"`
	IsActive      bool             `db:"is_active" json:"is_active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// EffectivePrice returns the sale price when one is set, the regular
// VAT-inclusive price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.PriceWithVAT
}

// ShippingMethod is a staff-configured delivery option. FreeShippingOver,
// when set, waives the price once the VAT-inclusive cart subtotal reaches it.
type ShippingMethod struct {
	ID               int64            `db:"id" json:"id"`
	Code             string           `db:"code" json:"code"`
	Name             string           `db:"name" json:"name"`
	Price            decimal.Decimal  `db:"price" json:"price"`
	VATRate          decimal.Decimal  `db:"vat_rate" json:"vat_rate"`
	FreeShippingOver *decimal.Decimal `db:"free_shipping_over" json:"free_shipping_over,omitempty"`
	IsActive         bool             `db:"is_active" json:"is_active"`
}

// PaymentMethod is a staff-configured payment option. Gateway mechanics
// live elsewhere; orders only snapshot the label.
type PaymentMethod struct {
	ID       int64  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Discount is a promotional code. CurrentUses is a shared counter and is
// only ever advanced by the store's conditional redemption update.
type Discount struct {
	ID                    int64            `db:"id" json:"id"`
	Code                  string           `db:"code" json:"code"`
	Type                  string           `db:"discount_type" json:"type"`
	Value                 decimal.Decimal  `db:"value" json:"value"`
	MinOrderValue         *decimal.Decimal `db:"min_order_value" json:"min_order_value,omitempty"`
	MaxUsesTotal          *int             `db:"max_uses_total" json:"max_uses_total,omitempty"`
	MaxUsesPerCustomer    int              `db:"max_uses_per_customer" json:"max_uses_per_customer"`
	CurrentUses           int              `db:"current_uses" json:"current_uses"`
	ValidFrom             time.Time        `db:"valid_from" json:"valid_from"`
	ValidUntil            *time.Time       `db:"valid_until" json:"valid_until,omitempty"`
	RestrictedCategoryIDs pq.Int64Array    `db:"restricted_category_ids" json:"restricted_category_ids,omitempty"`
	RestrictedProductIDs  pq.Int64Array    `db:"restricted_product_ids" json:"restricted_product_ids,omitempty"`
	IsActive              bool             `db:"is_active" json:"is_active"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
}

// EffectiveAt reports whether the discount can be redeemed at the given
// instant, ignoring usage limits and order contents.
func (d *Discount) EffectiveAt(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// Order is the durable result of a completed checkout. Subtotal is
// VAT-exclusive, VATTotal is the item VAT component, ShippingCost is
// VAT-inclusive and Total = Subtotal + VATTotal + ShippingCost -
// DiscountAmount, never negative. Address fields are snapshots; the
// customer record may change later without affecting them.
type Order struct {
	ID            int64  `db:"id" json:"id"`
	OrderNumber   string `db:"order_number" json:"order_number"`
	CustomerID    *int64 `db:"customer_id" json:"customer_id,omitempty"`
	Status        string `db:"status" json:"status"`
	PaymentStatus string `db:"payment_status" json:"payment_status"`

	BillingFirstName   string  `db:"billing_first_name" json:"billing_first_name"`
	BillingLastName    string  `db:"billing_last_name" json:"billing_last_name"`
	BillingEmail       string  `db:"billing_email" json:"billing_email"`
	BillingPhone       string  `db:"billing_phone" json:"billing_phone"`
	BillingStreet      string  `db:"billing_street" json:"billing_street"`
	BillingCity        string  `db:"billing_city" json:"billing_city"`
	BillingZIP         string  `db:"billing_zip" json:"billing_zip"`
	BillingCountry     string  `db:"billing_country" json:"billing_country"`
	BillingCompanyName *string `db:"billing_company_name" json:"billing_company_name,omitempty"`
	BillingICO         *string `db:"billing_ico" json:"billing_ico,omitempty"`
	BillingDIC         *string `db:"billing_dic" json:"billing_dic,omitempty"`
	BillingICDPH       *string `db:"billing_ic_dph" json:"billing_ic_dph,omitempty"`

	ShippingFirstName string `db:"shipping_first_name" json:"shipping_first_name"`
	ShippingLastName  string `db:"shipping_last_name" json:"shipping_last_name"`
	ShippingStreet    string `db:"shipping_street" json:"shipping_street"`
	ShippingCity      string `db:"shipping_city" json:"shipping_city"`
	ShippingZIP       string `db:"shipping_zip" json:"shipping_zip"`
	ShippingCountry   string `db:"shipping_country" json:"shipping_country"`
	ShippingPhone     string `db:"shipping_phone" json:"shipping_phone"`

	ShippingMethodID   int64  `db:"shipping_method_id" json:"shipping_method_id"`
	ShippingMethodName string `db:"shipping_method_name" json:"shipping_method_name"`
	PaymentMethodID    int64  `db:"payment_method_id" json:"payment_method_id"`
	PaymentMethodName  string `db:"payment_method_name" json:"payment_method_name"`

	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	VATTotal       decimal.Decimal `db:"vat_total" json:"vat_total"`
	ShippingCost   decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Currency       string          `db:"currency" json:"currency"`

	DiscountID     *int64  `db:"discount_id" json:"discount_id,omitempty"`
	DiscountCode   *string `db:"discount_code" json:"discount_code,omitempty"`
	CustomerNote   *string `db:"customer_note" json:"customer_note,omitempty"`
	TrackingNumber *string `db:"tracking_number" json:"tracking_number,omitempty"`
	InvoiceID      *int64  `db:"invoice_id" json:"invoice_id,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ShippedAt   *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// BuyerName returns the invoice-facing buyer identity: the billing company
// name when present, the billing person otherwise.
func (o *Order) BuyerName() string {
	if o.BillingCompanyName != nil && *o.BillingCompanyName != "" {
		return *o.BillingCompanyName
	}
	return o.BillingFirstName + " " + o.BillingLastName
}

// OrderItem is an immutable snapshot of a product at order time.
type OrderItem struct {
	ID              int64           `db:"id" json:"id"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	ProductSKU      string          `db:"product_sku" json:"product_sku"`
	ProductName     string          `db:"product_name" json:"product_name"`
	Quantity        int             `db:"quantity" json:"quantity"`
	PriceWithoutVAT decimal.Decimal `db:"price_without_vat" json:"price_without_vat"`
	PriceWithVAT    decimal.Decimal `db:"price_with_vat" json:"price_with_vat"`
	VATRate         decimal.Decimal `db:"vat_rate" json:"vat_rate"`
	VATMode         string          `db:"vat_mode" json:"vat_mode"`
	LineTotal       decimal.Decimal `db:"line_total" json:"line_total"`
}

// Invoice types
const (
	InvoiceTypeInvoice  = "invoice"
	InvoiceTypeProforma = "proforma"
)

// Invoice statuses
const (
	InvoiceStatusIssued    = "issued"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice is the financial document for exactly one order. It is never
// deleted; cancellation is a status for audit integrity.
type Invoice struct {
	ID            int64  `db:"id" json:"id"`
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`
	OrderID       int64  `db:"order_id" json:"order_id"`
	CustomerID    *int64 `db:"customer_id" json:"customer_id,omitempty"`
	Type          string `db:"invoice_type" json:"type"`
	Status        string `db:"status" json:"status"`

	IssueDate    time.Time `db:"issue_date" json:"issue_date"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	DeliveryDate time.Time `db:"delivery_date" json:"delivery_date"`

	SellerName        string `db:"seller_name" json:"seller_name"`
	SellerICO         string `db:"seller_ico" json:"seller_ico"`
	SellerDIC         string `db:"seller_dic" json:"seller_dic"`
	SellerICDPH       string `db:"seller_ic_dph" json:"seller_ic_dph"`
	SellerStreet      string `db:"seller_street" json:"seller_street"`
	SellerCity        string `db:"seller_city" json:"seller_city"`
	SellerZIP         string `db:"seller_zip" json:"seller_zip"`
	SellerCountry     string `db:"seller_country" json:"seller_country"`
	SellerBankAccount string `db:"seller_bank_account" json:"seller_bank_account"`
	SellerBankName    string `db:"seller_bank_name" json:"seller_bank_name"`

	BuyerName    string  `db:"buyer_name" json:"buyer_name"`
	BuyerICO     *string `db:"buyer_ico" json:"buyer_ico,omitempty"`
	BuyerDIC     *string `db:"buyer_dic" json:"buyer_dic,omitempty"`
	BuyerICDPH   *string `db:"buyer_ic_dph" json:"buyer_ic_dph,omitempty"`
	BuyerStreet  string  `db:"buyer_street" json:"buyer_street"`
	BuyerCity    string  `db:"buyer_city" json:"buyer_city"`
	BuyerZIP     string  `db:"buyer_zip" json:"buyer_zip"`
	BuyerCountry string  `db:"buyer_country" json:"buyer_country"`

	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	VATTotal       decimal.Decimal `db:"vat_total" json:"vat_total"`
	ShippingCost   decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Currency       string          `db:"currency" json:"currency"`

	PaymentMethod  string     `db:"payment_method" json:"payment_method"`
	VariableSymbol string     `db:"variable_symbol" json:"variable_symbol"`
	Note           *string    `db:"note" json:"note,omitempty"`
	PaidAt         *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// InvoiceItem is one document line. Shipping appears as a synthetic line
// with SKU "SHIPPING" so the document balances to the order total.
type InvoiceItem struct {
	ID              int64           `db:"id" json:"id"`
	InvoiceID       int64           `db:"invoice_id" json:"invoice_id"`
	ProductName     string          `db:"product_name" json:"product_name"`
	ProductSKU      string          `db:"product_sku" json:"product_sku"`
	Quantity        int             `db:"quantity" json:"quantity"`
	Unit            string          `db:"unit" json:"unit"`
	PriceWithoutVAT decimal.Decimal `db:"price_without_vat" json:"price_without_vat"`
	PriceWithVAT    decimal.Decimal `db:"price_with_vat" json:"price_with_vat"`
	VATRate         decimal.Decimal `db:"vat_rate" json:"vat_rate"`
	VATMode         string          `db:"vat_mode" json:"vat_mode"`
	LineTotal       decimal.Decimal `db:"line_total" json:"line_total"`
}

// ShippingSKU marks the synthetic shipping invoice line.
const ShippingSKU = "SHIPPING"
