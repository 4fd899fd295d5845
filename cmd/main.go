package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"gigBack/internal/config"
	"gigBack/internal/repositories"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("loading .env file: %v", err)
	}

	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	addr := flag.String("addr", "", "HTTP network address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	logger := newLogger(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	if err := repositories.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	app, err := initializeApp(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer app.close()
	app.startWorkers(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	errorWriter := logger.WriterLevel(logrus.ErrorLevel)
	defer errorWriter.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     log.New(errorWriter, "", 0),
		Handler:      c.Handler(app.routes()),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.Infof("Starting server on %s", cfg.Server.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// openDB opens the store. MySQL DSNs are forced to parse times in UTC since
// deadlines are compared against a UTC clock.
func openDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case repositories.DialectMySQL:
		mcfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mcfg.ParseTime = true
		mcfg.Loc = time.UTC
		dsn = mcfg.FormatDSN()
	case repositories.DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == repositories.DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
