package datasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "optpricer/internal/errors"
	"optpricer/internal/shared/testutil"
	"optpricer/pkg/contracts/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const positionsCSV = "\ufeffstrategy_id,Exposure,end_date,market_price,instrument_type,position_type,future_value,option_type,strike,rf_rate\n" +
	"124,IPEBRT25Z,2025-12-01,1.25,Option,exposure,70.5,call,72.0,0.0\n" +
	"124,TTF Curve,2025-08-01 00:00:00,,Option,exposure,,put,25,\n" +
	"999,OTHER,2025-08-01,1,Option,exposure,1,put,1,0.01\n" +
	"124,FUT,2025-08-01,1,Future,exposure,1,,,\n" +
	",,,,,,,,,\n"

func TestReadPositionsCSV(t *testing.T) {
	path := writeFile(t, "positions.csv", positionsCSV)

	rows, err := ReadPositions(path, PositionFilter{StrategyIDs: []string{"124"}}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "IPEBRT25Z", rows[0].Exposure)
	assert.Equal(t, testutil.MustDate("2025-12-01"), *rows[0].EndDate)
	assert.InDelta(t, 72.0, *rows[0].Strike, 1e-12)
	assert.InDelta(t, 0.0, *rows[0].RFRate, 1e-12)
	assert.Nil(t, rows[0].IVol)

	assert.Equal(t, "TTF Curve", rows[1].Exposure)
	assert.Nil(t, rows[1].MarketPrice)
	assert.Nil(t, rows[1].FutureValue)
	assert.Nil(t, rows[1].RFRate)
	assert.Equal(t, domain.OptionTypePut, rows[1].OptionType)
}

func TestReadPositionsCSV_NoStrategyFilter(t *testing.T) {
	path := writeFile(t, "positions.csv", positionsCSV)

	rows, err := ReadPositions(path, PositionFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReadPositionsCSV_Errors(t *testing.T) {
	missing := writeFile(t, "positions.csv", "exposure,strike\nE1,50\n")
	_, err := ReadPositions(missing, PositionFilter{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "missing columns")

	bad := writeFile(t, "positions.csv",
		"exposure,end_date,market_price,future_value,option_type,strike,rf_rate\nE1,2025-08-01,abc,1,call,1,0\n")
	_, err = ReadPositions(bad, PositionFilter{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Contains(t, err.Error(), "market_price")
}

func TestReadPositionsXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Valuations"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	rows := [][]any{
		{"Aggregated valuations export"},
		{},
		{"exposure", "end_date", "market_price", "future_value", "option_type", "strike", "rf_rate", "ivol"},
		{"E1", "2025-08-01", 1.25, 100, "call", 50, 0.05, 0.3},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	path := filepath.Join(t.TempDir(), "positions.xlsx")
	require.NoError(t, f.SaveAs(path))

	out, err := ReadPositions(path, PositionFilter{StrategyIDs: []string{"124"}}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1, "no strategy_id column, filter does not apply")
	assert.Equal(t, "E1", out[0].Exposure)
	assert.InDelta(t, 100.0, *out[0].FutureValue, 1e-12)
	require.NotNil(t, out[0].IVol)
	assert.InDelta(t, 0.3, *out[0].IVol, 1e-12)
}

func TestReadMapping(t *testing.T) {
	path := writeFile(t, "mapping.csv",
		"opt_symbol,exchange,scheme,tempest_code,commodity_code\n"+
			"TFO,ICE,European,T1,EUA\n"+
			"B,ICE,American,T2,BRN\n")

	rows, err := ReadMapping(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.MappingRow{
		{OptSymbol: "TFO", Exchange: "ICE", Scheme: "European", TempestCode: "T1", CommodityCode: "EUA"},
		{OptSymbol: "B", Exchange: "ICE", Scheme: "American", TempestCode: "T2", CommodityCode: "BRN"},
	}, rows)

	_, err = ReadMapping(writeFile(t, "mapping.csv", "opt_symbol\nTFO\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange")
}

func TestReadSettlementRequests(t *testing.T) {
	path := writeFile(t, "results.csv",
		"exposure,crate_ticks,ym_key,option_type,strike,source,computed_value\n"+
			"E1,TFO,202508,put,25.0,ICE,1.2\n")

	reqs, err := ReadSettlementRequests(path, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SettlementRequest{
		CrateTicks: "TFO", YMKey: "202508", OptionType: "put", Strike: "25.0", Source: "ICE",
	}, reqs[0])
}
