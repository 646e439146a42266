package csvimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestParsePaymentMappings(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		want    []migration.PaymentMethodMapping
		wantErr string
	}{
		{
			name: "valid rows",
			csv: "customer_id_old,source_id_old,customer_id_new,source_id_new\n" +
				"cus_A,card_1,cus_X,pm_9\n" +
				"cus_B,src_2,cus_Y,card_8\n",
			want: []migration.PaymentMethodMapping{
				{CustomerIDOld: "cus_A", SourceIDOld: "card_1", CustomerIDNew: "cus_X", SourceIDNew: "pm_9"},
				{CustomerIDOld: "cus_B", SourceIDOld: "src_2", CustomerIDNew: "cus_Y", SourceIDNew: "card_8"},
			},
		},
		{
			name:    "missing column",
			csv:     "customer_id_old,source_id_old,customer_id_new\ncus_A,card_1,cus_X\n",
			wantErr: "missing columns source_id_new",
		},
		{
			name: "invalid id",
			csv: "customer_id_old,source_id_old,customer_id_new,source_id_new\n" +
				"cus_A,card_1,user_1,pm_9\n",
			wantErr: "row 2, column 'customer_id_new'",
		},
		{
			name: "duplicate old source",
			csv: "customer_id_old,source_id_old,customer_id_new,source_id_new\n" +
				"cus_A,card_1,cus_X,pm_9\n" +
				"cus_B,card_1,cus_Y,pm_8\n",
			wantErr: "first seen in row 2",
		},
		{
			name:    "empty file",
			csv:     "",
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePaymentMappings(strings.NewReader(tt.csv))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, migration.ErrInvalidMigrationFile)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentMappingFile_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pan.csv")
	require.NoError(t, os.WriteFile(path, []byte("customer_id_old,source_id_old,customer_id_new,source_id_new\ncus_A,card_1,cus_X,pm_9\n"), 0o600))

	src := NewPaymentMappingFile(path, zaptest.NewLogger(t))
	got, err := src.LoadPaymentMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pm_9", got[0].SourceIDNew)

	tsv := filepath.Join(dir, "pan.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("customer_id_old\tsource_id_old\tcustomer_id_new\tsource_id_new\ncus_B\tsrc_2\tcus_Y\tcard_8\n"), 0o600))
	got, err = NewPaymentMappingFile(tsv, nil).LoadPaymentMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "card_8", got[0].SourceIDNew)

	_, err = NewPaymentMappingFile(filepath.Join(dir, "missing.csv"), nil).LoadPaymentMappings(context.Background())
	assert.ErrorIs(t, err, migration.ErrInvalidMigrationFile)
}
