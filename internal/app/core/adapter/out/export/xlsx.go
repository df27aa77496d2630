package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// SheetName XLSX 工作表名稱
const SheetName = "Withdrawals"

// XLSX 使用 excelize 匯出 Excel 檔
type XLSX struct{}

func NewXLSX() *XLSX {
	return &XLSX{}
}

func (*XLSX) Format() string {
	return "xlsx"
}

func (*XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (*XLSX) Export(w io.Writer, requests []domain.WithdrawalRequest) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, r := range requests {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		// 數字欄位保留數值型態，方便在 Excel 內加總
		values := []any{r.ID, r.AccountID, r.Amount, string(r.Status), formatTime(r.CreatedAt), formatTime(r.DecidedAt)}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}

	if err := f.SetColWidth(SheetName, "B", "B", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "E", "F", 20); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

var _ usecase.Exporter = (*XLSX)(nil)
