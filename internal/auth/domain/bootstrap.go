package domain

// BootstrapData seeds the first administrator of an empty vault.
type BootstrapData struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string // generated when empty
}

// BootstrapResult echoes the created admin. Password is only set when it
// was generated.
type BootstrapResult struct {
	UserID   string
	Email    string
	Password string
}
