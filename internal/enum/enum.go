package enum

// ── State machine (CHECK constrained in DB) ──

// Order status values. The shop floor calls these "dilaundry",
// "siap_diambil", and "selesai"; the API speaks English.
const (
	StatusInProgress     = "in_progress"
	StatusReadyForPickup = "ready_for_pickup"
	StatusCompleted      = "completed"
)

// ── Pricing dimensions (CHECK constrained in DB) ──

const (
	ServiceWashAndIron = "wash_and_iron"
	ServiceWashOnly    = "wash_only"
	ServiceIronOnly    = "iron_only"
)

// Pricing categories: by_weight is "kiloan" (per kilogram, rounded up),
// by_item is "satuan" (per piece).
const (
	CategoryByWeight = "by_weight"
	CategoryByItem   = "by_item"
)

// ── Roles (CHECK constrained in DB) ──

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)
