package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"db-sync/internal/schema"
	"db-sync/internal/sqlscript"

	"golang.org/x/crypto/bcrypt"
)

// SeedConfig holds the baseline accounts and branding written by a reset.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
	OwnerEmail    string
	OwnerPassword string
	OwnerName     string
	CompanyName   string
}

// DefaultSeed is used for every field left empty.
var DefaultSeed = SeedConfig{
	AdminEmail:    "admin@example.com",
	AdminPassword: "admin123",
	AdminName:     "Administrador",
	OwnerEmail:    "owner@example.com",
	OwnerPassword: "owner123",
	OwnerName:     "Propietario",
	CompanyName:   "Firma Digital",
}

func (c SeedConfig) withDefaults() SeedConfig {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return SeedConfig{
		AdminEmail:    pick(c.AdminEmail, DefaultSeed.AdminEmail),
		AdminPassword: pick(c.AdminPassword, DefaultSeed.AdminPassword),
		AdminName:     pick(c.AdminName, DefaultSeed.AdminName),
		OwnerEmail:    pick(c.OwnerEmail, DefaultSeed.OwnerEmail),
		OwnerPassword: pick(c.OwnerPassword, DefaultSeed.OwnerPassword),
		OwnerName:     pick(c.OwnerName, DefaultSeed.OwnerName),
		CompanyName:   pick(c.CompanyName, DefaultSeed.CompanyName),
	}
}

// SeedRow is one baseline row. Columns and Values are parallel.
type SeedRow struct {
	Table   string
	Columns []string
	Values  []any
}

func row(table string, pairs ...any) SeedRow {
	r := SeedRow{Table: table}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Columns = append(r.Columns, pairs[i].(string))
		r.Values = append(r.Values, pairs[i+1])
	}
	return r
}

// SeedRows builds the baseline rows in insertion order. Passwords are stored
// as bcrypt hashes.
func SeedRows(cfg SeedConfig, now time.Time) ([]SeedRow, error) {
	cfg = cfg.withDefaults()
	adminHash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	ownerHash, err := bcrypt.GenerateFromPassword([]byte(cfg.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash owner password: %w", err)
	}
	ts := now.UTC()

	return []SeedRow{
		row("users",
			"email", cfg.AdminEmail,
			"password", string(adminHash),
			"name", cfg.AdminName,
			"role", "admin",
			"departamento", "Administración",
			"is_active", 1,
			"created_at", ts,
			"updated_at", ts),
		row("owners",
			"email", cfg.OwnerEmail,
			"password", string(ownerHash),
			"name", cfg.OwnerName,
			"company", cfg.CompanyName,
			"is_active", 1,
			"created_at", ts,
			"updated_at", ts),
		row("pdf_config",
			"name", "default",
			"page_size", "A4",
			"orientation", "portrait",
			"margin_top", 20,
			"margin_bottom", 20,
			"margin_left", 15,
			"margin_right", 15,
			"header_text", cfg.CompanyName,
			"footer_text", "Documento firmado electrónicamente",
			"created_at", ts),
		row("theme_config",
			"name", "default",
			"primary_color", "#1e40af",
			"secondary_color", "#64748b",
			"accent_color", "#f59e0b",
			"font_family", "Inter, sans-serif",
			"is_active", 1,
			"created_at", ts),
		row("visual_config",
			"company_name", cfg.CompanyName,
			"logo_url", "",
			"welcome_message", "Bienvenido a "+cfg.CompanyName,
			"show_logo", 1,
			"created_at", ts),
		row("activity_logs",
			"action", "system_reset",
			"description", "Base de datos restablecida a los valores iniciales",
			"user_email", cfg.AdminEmail,
			"created_at", ts),
		row("activity_logs",
			"action", "seed_accounts",
			"description", "Cuentas de administrador y propietario creadas",
			"user_email", cfg.AdminEmail,
			"created_at", ts),
	}, nil
}

// seedStatements keeps the rows and columns that exist live and renders them
// as INSERT statements with bound parameters.
func (e *Engine) seedStatements(ctx context.Context, cat Catalog, rows []SeedRow) ([]sqlscript.Statement, error) {
	tables, err := cat.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	liveNames := schema.NameSet(tables)
	liveTables := make(map[string]*schema.Table)

	var stmts []sqlscript.Statement
	for _, r := range rows {
		name, ok := liveNames[strings.ToLower(r.Table)]
		if !ok {
			e.log.Debug().Str("table", r.Table).Msg("Seed table missing, skipped")
			continue
		}
		t, ok := liveTables[name]
		if !ok {
			cols, err := cat.ListColumns(ctx, name)
			if err != nil {
				return nil, err
			}
			t = &schema.Table{Name: name, Columns: cols}
			liveTables[name] = t
		}

		var cols []string
		var vals []any
		for i, c := range r.Columns {
			if t.HasColumn(c) {
				cols = append(cols, c)
				vals = append(vals, r.Values[i])
			}
		}
		if len(cols) == 0 {
			continue
		}
		stmts = append(stmts, sqlscript.NewStatement(e.d.InsertQuery(name, cols), vals...))
	}
	return stmts, nil
}
