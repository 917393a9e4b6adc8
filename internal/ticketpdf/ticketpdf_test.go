package ticketpdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/ticket-office/internal/credential"
)

func TestRenderProducesPDF(t *testing.T) {
	qrPNG, err := credential.QRPNG("3f2a9c4e", 256)
	require.NoError(t, err)

	out, err := Render(Ticket{
		EventName:   "Autumn Open Air",
		Venue:       "Riverside Park",
		StartsAt:    "2026-09-12T19:00:00Z",
		OrderNumber: "TKT-20260828-K7Q2M9XF",
		BuyerName:   "Ada",
		Quantity:    2,
		TierName:    "General",
		TotalCents:  9000,
	}, qrPNG)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, []byte("%PDF"), out[:4])
}
