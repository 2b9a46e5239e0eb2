package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_DB_URL", "postgres://u:p@localhost/db")
	t.Setenv("DELTA_THRESHOLD", "12.5")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("LEDGER_RETRY_DELAY", "2s")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Ledger.QueryRetries)
	assert.Equal(t, 2*time.Second, cfg.Ledger.RetryDelay)
	assert.True(t, decimal.RequireFromString("12.5").Equal(cfg.Runs.Threshold))
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Analytics.Brokers)
	assert.Equal(t, "pdftotext", cfg.Extract.Pdftotext)
	assert.Equal(t, 30*time.Second, cfg.Runs.SinkTimeout)
}

func TestConfigValidateRequiresLedger(t *testing.T) {
	t.Setenv("LEDGER_DB_URL", "")
	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestInnermostMessage(t *testing.T) {
	base := &EmptyDocumentError{Partner: "tadde", Reason: "no whoppah blocks"}
	wrapped := fmt.Errorf("normalize: %w", fmt.Errorf("tadde: %w", base))
	assert.Equal(t, base.Error(), InnermostMessage(wrapped))
	assert.Equal(t, "", InnermostMessage(nil))
}

func TestToStatus(t *testing.T) {
	st, _ := status.FromError(ToStatus(&UnsupportedPartnerError{Partner: "dhl"}))
	assert.Equal(t, codes.InvalidArgument, st.Code())

	st, _ = status.FromError(ToStatus(fmt.Errorf("load: %w", ErrRateData)))
	assert.Equal(t, codes.Internal, st.Code())

	assert.NoError(t, ToStatus(nil))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("partner", "", Required).
		Field("order_id", "nope", UUID).
		Field("country", "NL", CountryCode)
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.True(t, IsValidation(v.Error()))

	err := ValidateAndReturnError(v)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "order_id")
	assert.NoError(t, ValidateAndReturnError(NewValidator().Field("partner", "tadde", Required)))
}
