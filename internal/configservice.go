package internal

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// ConfigService gives the authenticated user access to parts of the application's configuration
type ConfigService interface {
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file and returns it
	LoadFromFile(ctx context.Context, filename string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig returns the current application configuration
	GetConfig() models.AppConfig
	// BookingSettings returns the booking-related part of the configuration
	BookingSettings(ctx context.Context) models.BookingConfig
	// UpdateBookingSettings replaces the booking-related part of the configuration and persists it
	UpdateBookingSettings(ctx context.Context, settings models.BookingConfig) error
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

type configService struct {
	sync.RWMutex
	configFilename string
	config         *models.AppConfig
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string) ConfigService {
	return &configService{
		configFilename: configFilename,
	}
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file and returns it
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Loading configuration file")
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	}
	defer f.Close()
	if err = json.NewDecoder(f).Decode(&conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
	}
	s.Lock()
	s.config = conf
	s.Unlock()
	return nil
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig()
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig returns the current application configuration
func (s *configService) GetConfig() models.AppConfig {
	s.RLock()
	defer s.RUnlock()
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}

// BookingSettings returns the booking-related part of the configuration
func (s *configService) BookingSettings(ctx context.Context) models.BookingConfig {
	return s.GetConfig().Booking
}

// UpdateBookingSettings replaces the booking-related part of the configuration and persists it
func (s *configService) UpdateBookingSettings(ctx context.Context, settings models.BookingConfig) error {
	s.Lock()
	if s.config == nil {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			s.config = tmp
		} else {
			s.Unlock()
			return errors.Wrap(err, "UpdateBookingSettings: Failed to create default config")
		}
	}
	s.config.Booking = settings
	s.Unlock()
	return s.Write(ctx)
}
