package report

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"fleet-telemetry-reporter/internal/analytics"
	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/logger"
	"fleet-telemetry-reporter/internal/pipeline"
)

const (
	sheetDriver       = "Driver Performance"
	sheetVehicle      = "Vehicle Performance"
	sheetTrafficLight = "Traffic Light Performance"
)

// ExcelRenderer writes one extraction run to a three-sheet workbook
// following the PTT fleet template: driver performance, vehicle
// performance and the traffic-light index.
type ExcelRenderer struct {
	cfg *config.Report
}

func NewExcelRenderer(cfg *config.Report) *ExcelRenderer {
	return &ExcelRenderer{cfg: cfg}
}

type styles struct {
	title  int
	header int
	data   int
	number int
}

// Render writes the workbook and returns its path.
func (r *ExcelRenderer) Render(data *pipeline.FleetData) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := buildStyles(f)
	if err != nil {
		return "", fmt.Errorf("create styles: %w", err)
	}

	if err := r.writeDriverSheet(f, st, data); err != nil {
		return "", err
	}
	if err := r.writeVehicleSheet(f, st, data); err != nil {
		return "", err
	}
	if err := r.writeTrafficLightSheet(f, st, data); err != nil {
		return "", err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("PTT_Fleet_Report_%s_%s_%s.xlsx",
		data.Info.DateFrom.Format("2006-01-02"),
		data.Info.DateTo.Format("2006-01-02"),
		data.Info.ReportType,
	)
	path := filepath.Join(r.cfg.OutputDir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	logger.Info("Excel report generated", zap.String("path", path))
	return path, nil
}

func buildStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	box := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return st, err
	}

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"B4C6E7"}},
		Border:    box,
	})
	if err != nil {
		return st, err
	}

	st.data, err = f.NewStyle(&excelize.Style{Alignment: center, Border: box})
	if err != nil {
		return st, err
	}

	numFmt := "#,##0.00"
	st.number, err = f.NewStyle(&excelize.Style{Alignment: center, Border: box, CustomNumFmt: &numFmt})
	return st, err
}

func (r *ExcelRenderer) writeDriverSheet(f *excelize.File, st styles, data *pipeline.FleetData) error {
	if _, err := f.NewSheet(sheetDriver); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetDriver, "A", "A", 20)
	_ = f.SetColWidth(sheetDriver, "B", "B", 30)
	_ = f.SetColWidth(sheetDriver, "C", "AF", 12)

	if err := f.MergeCell(sheetDriver, "B1", "AF1"); err != nil {
		return err
	}
	_ = f.SetCellValue(sheetDriver, "B1", "Driver's Performance Summary")
	_ = f.SetCellStyle(sheetDriver, "B1", "AF1", st.title)

	writeDateRange(f, sheetDriver, st, "I6", "I7", "U6", "U7", data)

	headers := performanceHeaders("DRIVER'S ASSIGNMENT", "DRIVER'S NAME")
	headers[0] = append(headers[0], "Date", "Action Taken", "Signature")
	headers[1] = append(headers[1], "", "", "")
	writeHeaderRows(f, sheetDriver, st, 10, headers)

	row := 13
	for _, unit := range data.Units {
		if unit.Error != "" {
			continue
		}
		values := []interface{}{
			r.cfg.DriverAssignment,
			"Driver for " + unit.Name,
		}
		values = append(values, performanceRow(unit)...)
		values = append(values, data.Info.DateTo.Format("2006-01-02"), "", "")
		writeRow(f, sheetDriver, st, row, values, 2)
		row++
	}
	return nil
}

func (r *ExcelRenderer) writeVehicleSheet(f *excelize.File, st styles, data *pipeline.FleetData) error {
	if _, err := f.NewSheet(sheetVehicle); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetVehicle, "A", "A", 15)
	_ = f.SetColWidth(sheetVehicle, "B", "B", 10)
	_ = f.SetColWidth(sheetVehicle, "C", "C", 15)
	_ = f.SetColWidth(sheetVehicle, "D", "AH", 12)

	if err := f.MergeCell(sheetVehicle, "C1", "AH1"); err != nil {
		return err
	}
	_ = f.SetCellValue(sheetVehicle, "C1", "Vehicle Performance Summary")
	_ = f.SetCellStyle(sheetVehicle, "C1", "AH1", st.title)

	writeDateRange(f, sheetVehicle, st, "J5", "J6", "V5", "V6", data)

	headers := performanceHeaders("Department", "", "Vehicle No.")
	// The vehicle sheet adds fuel and CO2 columns after the harsh totals.
	headers[0] = append(headers[0], "FUEL CONSUMPTION (LITRE)", "", "", "TOTAL CO2 EMISSION (KG)")
	headers[1] = append(headers[1], "", "DRIVING HOURS", "IDLING DURATION", "")
	writeHeaderRows(f, sheetVehicle, st, 9, headers)

	row := 12
	for _, unit := range data.Units {
		if unit.Error != "" {
			continue
		}
		values := []interface{}{
			r.cfg.Department,
			r.cfg.VehicleType,
			unit.Name,
		}
		values = append(values, performanceRow(unit)...)
		// Fuel is clamped for presentation; a refuel mid-window otherwise
		// shows as negative consumption.
		values = append(values,
			math.Max(0, unit.Metrics.FuelConsumptionL),
			unit.Metrics.DrivingHours,
			unit.Metrics.IdlingHours,
			math.Max(0, unit.Metrics.CO2EmissionKG),
		)
		writeRow(f, sheetVehicle, st, row, values, 3)
		row++
	}
	return nil
}

func (r *ExcelRenderer) writeTrafficLightSheet(f *excelize.File, st styles, data *pipeline.FleetData) error {
	if _, err := f.NewSheet(sheetTrafficLight); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetTrafficLight, "A", "F", 20)

	if err := f.MergeCell(sheetTrafficLight, "A1", "F1"); err != nil {
		return err
	}
	_ = f.SetCellValue(sheetTrafficLight, "A1", "Traffic Light Performance Index")
	_ = f.SetCellStyle(sheetTrafficLight, "A1", "F1", st.title)

	headers := []string{"Vehicle/Driver", "Overall Score", "Eco Driving", "Safety Score", "Efficiency Score", "Performance Level"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		_ = f.SetCellValue(sheetTrafficLight, cell, h)
		_ = f.SetCellStyle(sheetTrafficLight, cell, cell, st.header)
	}

	row := 4
	for _, unit := range data.Units {
		if unit.Error != "" {
			continue
		}
		perf := unit.Performance
		rowStyle, err := trafficLightStyle(f, perf.Overall)
		if err != nil {
			return err
		}
		values := []interface{}{
			unit.Name,
			fmt.Sprintf("%.1f%%", perf.Overall),
			fmt.Sprintf("%.1f%%", perf.Eco),
			fmt.Sprintf("%.1f%%", perf.Safety),
			fmt.Sprintf("%.1f%%", perf.Efficiency),
			perf.Tier,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetTrafficLight, cell, v)
			_ = f.SetCellStyle(sheetTrafficLight, cell, cell, rowStyle)
		}
		row++
	}
	return nil
}

func trafficLightStyle(f *excelize.File, overall float64) (int, error) {
	color := "FF0000"
	switch {
	case overall >= 80:
		color = "92D050"
	case overall >= 60:
		color = "FFFF00"
	}
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
}

// performanceHeaders returns the two stacked header rows shared by the
// driver and vehicle sheets, parameterized on the leading identity
// columns.
func performanceHeaders(leading ...string) [2][]string {
	rows := [2][]string{
		{
			"Raw", "Raw", "Raw", "Raw",
			"TOTAL DISTANCE(KM)", "", "TOTAL DRIVING HOURS", "", "Idling", "",
			"ENGINE HOURS", "", "", "SPEEDING DURATION", "OVERSPEEDING VIOLATION",
			"", "", "", "", "", "", "", "", "HARSH\nACCELERATION", "HARSH\nBRAKING",
			"HARSH\nTURNING", "TOTAL",
		},
		{
			"Mileage", "Driving Hours", "Idling Duration", "Engine Hours",
			"", "", "", "", "Duration", "", "", "", "", "", "15", "35", "45", "55",
			"60", "65", "75", "80", "Total", "", "", "", "",
		},
	}
	blanks := make([]string, len(leading))
	rows[0] = append(append([]string{}, leading...), rows[0]...)
	rows[1] = append(blanks, rows[1]...)
	return rows
}

// performanceRow builds the metric columns shared by the driver and
// vehicle sheets, from the raw mileage column through the harsh-event
// total. Identity columns and sheet-specific trailers are added by the
// caller.
func performanceRow(unit pipeline.UnitResult) []interface{} {
	m := unit.Metrics
	d := unit.Driver

	fraction := func(v float64) float64 {
		if v > 0 {
			return v / 24
		}
		return 0
	}

	values := []interface{}{
		m.TotalDistanceKM,
		m.DrivingHours,
		m.IdlingHours,
		m.TotalEngineHours,
		m.TotalDistanceKM,
		fraction(m.DrivingHours),
		fraction(m.DrivingHours),
		0,
		fraction(m.IdlingHours),
		0,
		fraction(m.TotalEngineHours),
		0, 0,
		d.SpeedingDurationHours,
	}
	for _, label := range analytics.SpeedBucketLabels {
		values = append(values, d.SpeedViolations[label])
	}
	values = append(values,
		d.TotalViolations,
		d.HarshAcceleration,
		d.HarshBraking,
		d.HarshTurning,
		d.TotalHarshEvents,
	)
	return values
}

func writeHeaderRows(f *excelize.File, sheet string, st styles, firstRow int, headers [2][]string) {
	for i, rowHeaders := range headers {
		for col, h := range rowHeaders {
			cell, _ := excelize.CoordinatesToCellName(col+1, firstRow+i)
			_ = f.SetCellValue(sheet, cell, h)
			_ = f.SetCellStyle(sheet, cell, cell, st.header)
		}
	}
}

func writeRow(f *excelize.File, sheet string, st styles, row int, values []interface{}, textCols int) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
		switch v.(type) {
		case float64, int:
			if col >= textCols {
				_ = f.SetCellStyle(sheet, cell, cell, st.number)
			} else {
				_ = f.SetCellStyle(sheet, cell, cell, st.data)
			}
		default:
			_ = f.SetCellStyle(sheet, cell, cell, st.data)
		}
	}
}

func writeDateRange(f *excelize.File, sheet string, st styles, fromLabel, fromCell, toLabel, toCell string, data *pipeline.FleetData) {
	_ = f.SetCellValue(sheet, fromLabel, "DATE FROM:")
	_ = f.SetCellStyle(sheet, fromLabel, fromLabel, st.header)
	_ = f.SetCellValue(sheet, fromCell, data.Info.DateFrom.Format("2006-01-02"))
	_ = f.SetCellStyle(sheet, fromCell, fromCell, st.data)

	_ = f.SetCellValue(sheet, toLabel, "DATE TO:")
	_ = f.SetCellStyle(sheet, toLabel, toLabel, st.header)
	_ = f.SetCellValue(sheet, toCell, data.Info.DateTo.Format("2006-01-02"))
	_ = f.SetCellStyle(sheet, toCell, toCell, st.data)
}
