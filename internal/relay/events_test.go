package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/courierlive/internal/relay"
)

func TestUpdateLocationDecodesNumericStrings(t *testing.T) {
	var payload relay.UpdateLocation
	raw := `{"orderId":"abc123","latitude":"6.19","longitude":80.08,"heading":" 45 "}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	report := payload.Report()
	require.Equal(t, "abc123", payload.OrderID)
	require.Equal(t, 6.19, report.Latitude)
	require.Equal(t, 80.08, report.Longitude)
	require.Equal(t, 45.0, report.Heading)
}

func TestUpdateLocationCoercesMalformedFieldsToZero(t *testing.T) {
	var payload relay.UpdateLocation
	raw := `{"orderId":"abc123","latitude":true,"longitude":{"deg":80},"heading":"north"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	report := payload.Report()
	require.Equal(t, 0.0, report.Latitude)
	require.Equal(t, 0.0, report.Longitude)
	require.Equal(t, 0.0, report.Heading)
}

func TestUpdateLocationMissingFieldsDefaultToZero(t *testing.T) {
	var payload relay.UpdateLocation
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":"abc123"}`), &payload))

	report := payload.Report()
	require.Equal(t, 0.0, report.Latitude)
	require.Equal(t, 0.0, report.Longitude)
	require.Equal(t, 0.0, report.Heading)
}
