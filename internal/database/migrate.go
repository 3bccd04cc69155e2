package database

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/jmoiron/sqlx"
)

var (
	// AccountsColumns holds the columns for the "accounts" table.
	AccountsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "email", Type: field.TypeString, Nullable: true, Unique: true},
		{Name: "name", Type: field.TypeString, Default: ""},
		{Name: "avatar_url", Type: field.TypeString, Default: ""},
		{Name: "status", Type: field.TypeString, Default: "active"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// AccountsTable holds the schema information for the "accounts" table.
	AccountsTable = &schema.Table{
		Name:       "accounts",
		Columns:    AccountsColumns,
		PrimaryKey: []*schema.Column{AccountsColumns[0]},
	}

	// IdentityLinksColumns holds the columns for the "identity_links" table.
	IdentityLinksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "account_id", Type: field.TypeUUID},
		{Name: "provider_slug", Type: field.TypeString},
		{Name: "external_user_id", Type: field.TypeString},
		{Name: "email", Type: field.TypeString, Default: ""},
		{Name: "profile", Type: field.TypeJSON, Nullable: true},
		{Name: "linked_at", Type: field.TypeTime},
	}
	// IdentityLinksTable holds the schema information for the "identity_links" table.
	// The two unique indexes are what close concurrent link races.
	IdentityLinksTable = &schema.Table{
		Name:       "identity_links",
		Columns:    IdentityLinksColumns,
		PrimaryKey: []*schema.Column{IdentityLinksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "identity_links_accounts_links",
				Columns:    []*schema.Column{IdentityLinksColumns[1]},
				RefColumns: []*schema.Column{AccountsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "identitylink_provider_slug_external_user_id",
				Unique:  true,
				Columns: []*schema.Column{IdentityLinksColumns[2], IdentityLinksColumns[3]},
			},
			{
				Name:    "identitylink_account_id_provider_slug",
				Unique:  true,
				Columns: []*schema.Column{IdentityLinksColumns[1], IdentityLinksColumns[2]},
			},
		},
	}

	// SocialProvidersColumns holds the columns for the "social_providers" table.
	SocialProvidersColumns = []*schema.Column{
		{Name: "slug", Type: field.TypeString, Size: 64},
		{Name: "label", Type: field.TypeString, Default: ""},
		{Name: "scopes", Type: field.TypeJSON, Nullable: true},
		{Name: "override_scopes", Type: field.TypeBool, Default: false},
		{Name: "parameters", Type: field.TypeJSON, Nullable: true},
		{Name: "stateless", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SocialProvidersTable holds the schema information for the "social_providers" table.
	SocialProvidersTable = &schema.Table{
		Name:       "social_providers",
		Columns:    SocialProvidersColumns,
		PrimaryKey: []*schema.Column{SocialProvidersColumns[0]},
	}

	// AuditLogsColumns holds the columns for the "audit_logs" table.
	AuditLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "account_id", Type: field.TypeUUID, Nullable: true},
		{Name: "action", Type: field.TypeString},
		{Name: "provider_slug", Type: field.TypeString, Default: ""},
		{Name: "context", Type: field.TypeJSON, Nullable: true},
		{Name: "occurred_at", Type: field.TypeTime},
	}
	// AuditLogsTable holds the schema information for the "audit_logs" table.
	AuditLogsTable = &schema.Table{
		Name:       "audit_logs",
		Columns:    AuditLogsColumns,
		PrimaryKey: []*schema.Column{AuditLogsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "auditlog_account_id_occurred_at",
				Columns: []*schema.Column{AuditLogsColumns[1], AuditLogsColumns[5]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		AccountsTable,
		IdentityLinksTable,
		SocialProvidersTable,
		AuditLogsTable,
	}
)

func init() {
	IdentityLinksTable.ForeignKeys[0].RefTable = AccountsTable
}

// RunMigrations creates or upgrades the schema with ent's migration engine.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name, err := Dialect(db.DriverName())
	if err != nil {
		return err
	}
	migrate, err := schema.NewMigrate(entsql.OpenDB(name, db.DB))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := migrate.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
