package models

import (
	"path"
	"time"

	"github.com/kardianos/osext"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where Backstage stores all of its data - defaults to the /data subdirectory of
	// the folder the executable resides in
	DataDir string `json:"dataDir"`
	// The credentials for the default admin account that is created on startup if no user exists
	DefaultUser *DefaultUserConfig `json:"defaultUser"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress"`
	// The origins the SPA frontend may be served from
	AllowedOrigins []string `json:"allowedOrigins"`
	// The tunable parts of the staffing flow
	Booking BookingConfig `json:"booking"`
	// Endpoints of the external collaborators
	Webhooks WebhookConfig `json:"webhooks"`
}

// The DefaultUserConfig struct configures the admin account created on first startup
type DefaultUserConfig struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// BookingConfig is the configuration of the staffing registration flow.
// It is the part of the configuration administrators can change through the API.
type BookingConfig struct {
	// When set, registrations for a category that already has all slots filled are rejected at
	// write time. Left off, concurrent sign-ups may over-book a category - the read side shows
	// the real count either way.
	RejectFullCategories bool `json:"rejectFullCategories"`
	// How many hours an event without an end timestamp is assumed to last
	DefaultEventDurationHours uint `json:"defaultEventDurationHours"`
	// How many days an invitation link stays valid
	InvitationValidDays uint `json:"invitationValidDays"`
}

// EventDuration returns the configured default event duration. A zero configuration value falls
// back to DefaultEventDuration
func (c BookingConfig) EventDuration() time.Duration {
	if c.DefaultEventDurationHours == 0 {
		return DefaultEventDuration
	}
	return time.Duration(c.DefaultEventDurationHours) * time.Hour
}

// WebhookConfig holds the endpoints of the external collaborators.
// Empty URLs disable the respective dispatch.
type WebhookConfig struct {
	// The mail dispatch function called for notifications
	MailURL string `json:"mailUrl"`
	// The contract-signing collaborator called when an event requires a signed contract
	ContractURL string `json:"contractUrl"`
	// The address new contact requests are announced to
	NotifyAddress string `json:"notifyAddress"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir: path.Join(execDir, "data"),
		DefaultUser: &DefaultUserConfig{
			Name:     "admin",
			Password: "changeme",
		},
		ListenAddress:  ":3000",
		AllowedOrigins: []string{},
		Booking: BookingConfig{
			RejectFullCategories:      false,
			DefaultEventDurationHours: 4,
			InvitationValidDays:       14,
		},
	}, nil
}
