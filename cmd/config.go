package cmd

import (
	"fmt"

	"db-sync/internal/conn"
	"db-sync/internal/engine"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

func (c DBConfig) ConnConfig() conn.Config {
	return conn.Config{Host: c.Host, Port: c.Port, User: c.User, Password: c.Password, Database: c.Name}
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	OwnerEmail    string `mapstructure:"owner_email"`
	OwnerPassword string `mapstructure:"owner_password"`
	CompanyName   string `mapstructure:"company_name"`
}

func (c SeedConfig) EngineSeed() engine.SeedConfig {
	return engine.SeedConfig{
		AdminEmail:    c.AdminEmail,
		AdminPassword: c.AdminPassword,
		OwnerEmail:    c.OwnerEmail,
		OwnerPassword: c.OwnerPassword,
		CompanyName:   c.CompanyName,
	}
}

type Config struct {
	Database   DBConfig   `mapstructure:"database"`
	SchemaFile string     `mapstructure:"schema_file"`
	BackupDir  string     `mapstructure:"backup_dir"`
	Seed       SeedConfig `mapstructure:"seed"`
}

// LoadConfig reads the merged flag, env and file configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("database name is required (set DB_NAME or database.name)")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	return &cfg, nil
}
