package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"equity-momentum-lab/internal/domain"
)

// WriteCSV writes obs as the canonical date,ticker,close,volume CSV.
func WriteCSV(w io.Writer, obs []domain.PriceObservation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(requiredColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range obs {
		rec := []string{
			domain.FormatDate(o.Date),
			o.Ticker,
			strconv.FormatFloat(o.Close, 'f', -1, 64),
			strconv.FormatInt(o.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
