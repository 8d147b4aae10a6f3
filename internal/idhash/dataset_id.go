package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"equity-momentum-lab/internal/domain"
)

// ComputeDatasetID computes a deterministic dataset fingerprint using SHA256.
// Formula: SHA256 over "date|ticker|close|volume\n" for every row, in the
// given order. Callers pass rows ordered by (ticker, date).
// Returns hex-encoded hash (64 characters).
func ComputeDatasetID(rows []domain.PriceObservation) string {
	h := sha256.New()
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%s|%s|%d\n",
			domain.FormatDate(r.Date),
			r.Ticker,
			strconv.FormatFloat(r.Close, 'g', -1, 64),
			r.Volume,
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}
