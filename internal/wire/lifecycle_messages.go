package wire

func init() {
	Register("RegisterUser", RegisterUser{})
	Register("RecoveredUserInfo", RecoveredUserInfo{})
	Register("RetryLater", RetryLater{})
	Register("Shutdown", Shutdown{})
}

// UserRole distinguishes the three external peer kinds the coordinator's
// bimap tracks. The payment authority is not a "user" — it never registers
// and is addressed purely by static configuration.
type UserRole string

const (
	RoleClient     UserRole = "client"
	RoleRestaurant UserRole = "restaurant"
	RoleCourier    UserRole = "courier"
)

// RegisterUser is the first message any external peer sends after
// connecting, whether a brand-new identity or a reconnecting one. The
// store creates the entity on first sight and otherwise leaves it in
// place.
type RegisterUser struct {
	Role     UserRole  `json:"role"`
	UserID   string    `json:"user_id"`
	Position Position  `json:"position"`
}

// RecoveredUserInfo answers RegisterUser for a reconnecting identity,
// carrying whatever in-flight order the store still has for that user so
// the peer can resume.
type RecoveredUserInfo struct {
	Order *OrderDTO `json:"order,omitempty"`
}

// RetryLater is returned by a follower that receives a business-facing
// message instead of serving it: followers never apply business logic,
// only the leader does.
type RetryLater struct {
	Leader Endpoint `json:"leader"`
}

// Shutdown asks a peer to close its connection and stop, used by the
// payment authority and by test harnesses to terminate cleanly.
type Shutdown struct{}
