package profit

import (
	"github.com/shopspring/decimal"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
)

// Match joins sale lines with the FIFO consumption records of the same
// product. Lines without a record come back unmatched with nil figures.
// Report aggregates are taken from the report summary as-is.
func Match(saleItems []domain.SaleLineItem, report domain.FifoReport) domain.ProfitReport {
	records := indexRecords(report.Items)

	rows := make([]domain.MatchedRow, 0, len(saleItems))
	for _, item := range saleItems {
		productID := item.Product.Resolve()
		row := domain.MatchedRow{Item: item, ProductID: productID}

		record, ok := records[productID]
		if productID == "" || !ok {
			rows = append(rows, row)
			continue
		}

		cost := record.TotalCost
		local := item.Revenue().Sub(cost)
		profit, source := pickProfit(record, local)
		margin := record.ProfitMargin

		row.Matched = true
		row.Cost = &cost
		row.Profit = &profit
		row.LocalProfit = &local
		row.ProfitMargin = &margin
		row.ProfitSource = source
		rows = append(rows, row)
	}

	return domain.ProfitReport{Rows: rows, Summary: report.Summary}
}

func pickProfit(record domain.FifoConsumptionRecord, local decimal.Decimal) (decimal.Decimal, domain.ProfitSource) {
	if record.TotalProfit != nil {
		return *record.TotalProfit, domain.ProfitSourceUpstream
	}
	if record.FifoProfit != nil && record.FifoProfit.TotalProfit != nil {
		return *record.FifoProfit.TotalProfit, domain.ProfitSourceFifo
	}
	return local, domain.ProfitSourceLocal
}

// indexRecords keys records by resolved product id. The first record for a
// product wins.
func indexRecords(items []domain.FifoConsumptionRecord) map[string]domain.FifoConsumptionRecord {
	index := make(map[string]domain.FifoConsumptionRecord, len(items))
	for _, record := range items {
		id := record.Product.Resolve()
		if id == "" {
			continue
		}
		if _, exists := index[id]; exists {
			continue
		}
		index[id] = record
	}
	return index
}
