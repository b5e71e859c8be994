package shared

// Capability codes checked by the rbac guard. One code per back-office
// surface; handlers evaluate exactly one per request.
const (
	CapManageInvoices  = "manage_invoices"
	CapManagePayments  = "manage_payments"
	CapManageDiscounts = "manage_discounts"
	CapManageInventory = "manage_inventory"
	CapManageCatalog   = "manage_catalog"
	CapManageSettings  = "manage_settings"
)
