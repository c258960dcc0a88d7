package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	backstage "github.com/eventworks/backstage/internal"
	"github.com/eventworks/backstage/internal/contracts"
	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/eventworks/backstage/internal/log"
	"github.com/eventworks/backstage/internal/migrate"
	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/notify"
	contactrepo "github.com/eventworks/backstage/internal/repos/contact/sqlite"
	eventrepo "github.com/eventworks/backstage/internal/repos/event/sqlite"
	regrepo "github.com/eventworks/backstage/internal/repos/registration/sqlite"
	sessionrepo "github.com/eventworks/backstage/internal/repos/session/inmem"
	userrepo "github.com/eventworks/backstage/internal/repos/user/sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/kardianos/osext"
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	appName    = "Backstage"
	appVersion = "0.1.0"
	dbFile     = "backstage.db"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

func main() {
	// A .env file beside the binary may override environment variables for local development
	godotenv.Load()

	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	flag.Parse()
	if envConfig := os.Getenv("BACKSTAGE_CONFIG"); envConfig != "" {
		configFile = &envConfig
	}

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger)

	// Load the main configuration file
	cs := backstage.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig()

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the database connection and perform pending migrations
	dbFileName := path.Join(conf.DataDir, dbFile)
	var db *sqlx.DB
	if db, err = sqlx.Open("sqlite3", dbFileName); err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	eventRepo := eventrepo.New(db, logger)
	registrationRepo := regrepo.New(db, logger)
	userRepo := userrepo.New(db, logger)
	contactRepo := contactrepo.New(db, logger)
	sessionRepo := sessionrepo.New()

	// On an empty user table, create the administrator from the configuration so there is a way in
	numUsers, err := userRepo.Count()
	if err != nil {
		logger.WithError(err).Fatal("Failed to check the user table")
	}
	if numUsers == 0 && conf.DefaultUser != nil {
		u := models.User{
			Name:     strings.ToLower(conf.DefaultUser.Name),
			FullName: conf.DefaultUser.Name,
			Role:     models.RoleAdmin,
		}
		if err = u.SetPassword(conf.DefaultUser.Password); err != nil {
			logger.WithError(err).Fatal("Failed to set password for default user")
		}
		if err = userRepo.Create(&u); err != nil {
			logger.WithError(err).Fatal("Failed to create default user")
		}
		logger.Infof("Created administrator account '%s'", u.Name)
	}

	webhook := notify.NewWebhook(logger)
	pendingContracts := contracts.NewManager()

	evSrv := backstage.NewEventService(eventRepo, registrationRepo, userRepo, cs, logger)
	regSrv := backstage.NewRegistrationService(registrationRepo, eventRepo, userRepo, pendingContracts, webhook, cs, logger)
	userSrv := backstage.NewUserService(userRepo, webhook, cs, logger)
	contactSrv := backstage.NewContactService(contactRepo, webhook, cs, logger)
	sessServ := backstage.NewSessionService(sessionRepo, userRepo, logger)

	httpLogger := logger.WithField(log.FldTransport, "HTTP")

	h := backstage.MakeHTTPHandler(
		evSrv,
		regSrv,
		userSrv,
		contactSrv,
		sessServ,
		cs,
		httpLogger,
	)

	// The admin UI and the website run on their own origins
	c := cors.New(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "token"},
		AllowCredentials: true,
	})
	handler := c.Handler(h)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, handler)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := strings.Split(conf.ListenAddress, ":")[1]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if _, err := http.Get(url); err == nil {
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}
