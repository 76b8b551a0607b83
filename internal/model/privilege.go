package model

// Privilege represents a permission that can be granted to a role
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "order:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Place Order"
}

// Privilege codes checked by the route guards
const (
	PrivUserView   = "user:view"
	PrivUserCreate = "user:create"
	PrivUserUpdate = "user:update"
	PrivUserDelete = "user:delete"

	PrivProductView    = "product:view"
	PrivProductCreate  = "product:create"
	PrivProductUpdate  = "product:update"
	PrivProductDelete  = "product:delete"
	PrivCategoryCreate = "category:create"

	PrivOrderView     = "order:view"
	PrivOrderCreate   = "order:create"
	PrivOrderComplete = "order:complete"
	PrivOrderCancel   = "order:cancel"

	PrivReportView    = "report:view"
	PrivDashboardView = "dashboard:view"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
	// Catalog
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivCategoryCreate, Name: "Create Category"},
	// Orders
	{Code: PrivOrderView, Name: "View Order"},
	{Code: PrivOrderCreate, Name: "Place Order"},
	{Code: PrivOrderComplete, Name: "Complete Order"},
	{Code: PrivOrderCancel, Name: "Cancel Order"},
	// Reporting
	{Code: PrivReportView, Name: "View Reports"},
	{Code: PrivDashboardView, Name: "View Dashboard"},
}
