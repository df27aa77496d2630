package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// CSV 匯出 CSV
type CSV struct{}

func NewCSV() *CSV {
	return &CSV{}
}

func (*CSV) Format() string {
	return "csv"
}

func (*CSV) ContentType() string {
	return "text/csv"
}

func (*CSV) Export(w io.Writer, requests []domain.WithdrawalRequest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range requests {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var _ usecase.Exporter = (*CSV)(nil)
