package database

import (
	"fmt"
	"net/url"

	"moneyminder/internal/config"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds database connection settings
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewConfig extracts the database settings from the application config.
func NewConfig(app *config.Config) *Config {
	return &Config{
		Driver:   app.DBDriver,
		Host:     app.DBHost,
		Port:     app.DBPort,
		User:     app.DBUser,
		Password: app.DBPassword,
		DBName:   app.DBName,
		SSLMode:  app.DBSSLMode,
	}
}

// DSN returns the driver-specific connection string used by gorm. MySQL
// reports matched rather than changed rows so RowsAffected checks behave the
// same on every driver.
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode), nil
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			c.User, c.Password, c.Host, c.Port, c.DBName), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// MigrationURL returns the golang-migrate database URL.
func (c *Config) MigrationURL() (string, error) {
	creds := url.UserPassword(c.User, c.Password).String()
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s",
			creds, c.Host, c.Port, c.DBName, c.SSLMode), nil
	case DriverMySQL:
		return fmt.Sprintf("mysql://%s@tcp(%s:%s)/%s?multiStatements=true",
			creds, c.Host, c.Port, c.DBName), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// MigrationSource returns the file source holding this driver's migrations.
func (c *Config) MigrationSource(dir string) string {
	return fmt.Sprintf("file://%s/%s", dir, c.Driver)
}
