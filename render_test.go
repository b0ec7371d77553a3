package revmig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAddColumn(t *testing.T) {
	tests := []struct {
		name   string
		action AddColumn
		want   string
	}{
		{
			name: "nullable",
			action: AddColumn{
				Table: "lender", Column: "external_id", Type: "varchar(64)", Nullable: true,
			},
			want: `ALTER TABLE "lender" ADD COLUMN IF NOT EXISTS "external_id" varchar(64)`,
		},
		{
			name: "not null with default",
			action: AddColumn{
				Table: "borrower_document_type", Column: "archived", Type: "boolean", Default: "false",
			},
			want: `ALTER TABLE "borrower_document_type" ADD COLUMN IF NOT EXISTS "archived" boolean DEFAULT false NOT NULL`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statement, err := tt.action.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, statement.SQL)
			assert.Empty(t, statement.Args)
		})
	}
}

func TestRenderAddColumnIncomplete(t *testing.T) {
	_, err := AddColumn{Table: "lender"}.Render()
	require.Error(t, err)
}

func TestRenderDropColumn(t *testing.T) {
	statement, err := DropColumn{Table: "lender", Column: "external_id"}.Render()
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "lender" DROP COLUMN IF EXISTS "external_id"`, statement.SQL)
}

func TestRenderCreateEnum(t *testing.T) {
	statement, err := CreateEnum{
		Name: "message_type", Values: []string{"email", "sms"},
	}.Render()
	require.NoError(t, err)
	assert.Equal(
		t,
		`DO $$ BEGIN CREATE TYPE "message_type" AS ENUM ('email', 'sms'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		statement.SQL,
	)
}

func TestRenderDropEnum(t *testing.T) {
	statement, err := DropEnum{Name: "message_type"}.Render()
	require.NoError(t, err)
	assert.Equal(t, `DROP TYPE IF EXISTS "message_type"`, statement.SQL)
}

func TestRenderAddEnumValue(t *testing.T) {
	statement, err := AddEnumValue{Enum: "application_action_type", Value: "payoff_request"}.Render()
	require.NoError(t, err)
	assert.Equal(
		t,
		`ALTER TYPE "application_action_type" ADD VALUE IF NOT EXISTS 'payoff_request'`,
		statement.SQL,
	)
}

func TestRenderEscapesLiteralsAndIdentifiers(t *testing.T) {
	statement, err := AddEnumValue{Enum: `odd"name`, Value: "pay'off"}.Render()
	require.NoError(t, err)
	assert.Equal(t, `ALTER TYPE "odd""name" ADD VALUE IF NOT EXISTS 'pay''off'`, statement.SQL)
}

func TestRenderDataChangePassesArgsThrough(t *testing.T) {
	statement, err := DataChange{
		SQL:  "UPDATE lender SET external_id = $1 WHERE external_id IS NULL",
		Args: []any{""},
	}.Render()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE lender SET external_id = $1 WHERE external_id IS NULL", statement.SQL)
	assert.Equal(t, []any{""}, statement.Args)
}

func TestRenderEmptyStatements(t *testing.T) {
	_, dataErr := DataChange{}.Render()
	require.Error(t, dataErr)
	_, rawErr := RawStatement{}.Render()
	require.Error(t, rawErr)
}

func TestRenderActionsStopsOnInvalid(t *testing.T) {
	_, err := renderActions([]Action{
		RawStatement{SQL: "SELECT 1"},
		AddColumn{},
	})
	require.Error(t, err)
}
